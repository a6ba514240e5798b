package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"workdocs-ai/internal/ai"
	appsvc "workdocs-ai/internal/app"
	"workdocs-ai/internal/bootstrap"
	"workdocs-ai/internal/cache"
	"workdocs-ai/internal/platform/rabbitmq"
	"workdocs-ai/internal/repository"
	"workdocs-ai/internal/transport/http/handler"
	"workdocs-ai/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	sessionRepo := repository.NewSessionRepository(app.MySQL)
	documentRepo := repository.NewDocumentRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)
	regulationRepo := repository.NewRegulationRepository(app.MySQL)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	sessionService := appsvc.NewSessionService(
		sessionRepo,
		documentRepo,
		app.Cleanup,
		time.Duration(app.Config.Session.DefaultTTLMinutes)*time.Minute,
		time.Duration(app.Config.Session.MinTTLMinutes)*time.Minute,
		time.Duration(app.Config.Session.MaxTTLMinutes)*time.Minute,
	)
	documentService := appsvc.NewDocumentService(
		documentRepo,
		sessionRepo,
		app.GCS,
		app.Cleanup,
		rabbitmq.NewIndexJobPublisher(app.MQConn, app.Config.RabbitMQ.DocumentIndexQueue),
		app.Config.Storage.PathPrefix,
	)

	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	ragClient := ai.NewRAGClient(ai.Config{
		BaseURL: app.Config.LLM.BaseURL,
		APIKey:  app.Config.LLM.APIKey,
		Model:   app.Config.LLM.Model,
		TopK:    app.Config.LLM.TopK,
	}, app.VectorIndex)
	chatService := appsvc.NewChatService(
		sessionRepo,
		messageRepo,
		rabbitmq.NewMessagePublisher(app.MQConn, app.Config.RabbitMQ.MessagePersistQueue),
		historyCache,
		ragClient,
		appsvc.NewCitationFilter(documentRepo, regulationRepo),
		app.Config.VectorIndex.MyDocsIndexID,
		app.Config.VectorIndex.RegulationsIndexID,
		0,
	)

	authHandler := handler.NewAuthHandler(authService)
	sessionHandler := handler.NewSessionHandler(sessionService)
	documentHandler := handler.NewDocumentHandler(documentService)
	chatHandler := handler.NewChatHandler(chatService)
	regulationHandler := handler.NewRegulationHandler(regulationRepo)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	chatGroup.POST("/start", sessionHandler.Start)
	chatGroup.GET("/:id", sessionHandler.Get)
	chatGroup.DELETE("/:id", sessionHandler.End)
	chatGroup.POST("/:id/messages", chatHandler.Ask)
	chatGroup.GET("/:id/history", chatHandler.GetHistory)

	documentGroup := v1.Group("/documents")
	documentGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	documentGroup.POST("", documentHandler.Upload)
	documentGroup.GET("", documentHandler.List)
	documentGroup.GET("/:id", documentHandler.Get)
	documentGroup.DELETE("/:id", documentHandler.Delete)

	regulationGroup := v1.Group("/regulations")
	regulationGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	regulationGroup.GET("", regulationHandler.List)

	return router
}
