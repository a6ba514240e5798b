package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	appsvc "workdocs-ai/internal/app"
	"workdocs-ai/internal/config"
	"workdocs-ai/internal/model"
	gcsClient "workdocs-ai/internal/platform/gcs"
	mysqlClient "workdocs-ai/internal/platform/mysql"
	rabbitmqClient "workdocs-ai/internal/platform/rabbitmq"
	redisClient "workdocs-ai/internal/platform/redis"
	"workdocs-ai/internal/repository"
	"workdocs-ai/internal/vectorindex"
	"workdocs-ai/internal/worker"
)

type App struct {
	Config      *config.Config
	MySQL       *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	GCS         *gcsClient.Client
	VectorIndex *vectorindex.Client
	Cleanup     *appsvc.CleanupService

	MessageWorker *worker.MessagePersistWorker
	IndexWorker   *worker.IndexWorker
	SweepWorker   *worker.SweepWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.User{},
		&model.Session{},
		&model.Document{},
		&model.Message{},
		&model.Regulation{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	gcs, err := gcsClient.New(ctx, cfg.Storage.Bucket, cfg.Storage.CredentialsFile)
	if err != nil {
		return nil, err
	}

	index := vectorindex.New(cfg.VectorIndex.BaseURL, cfg.VectorIndex.APIKey)

	documentRepo := repository.NewDocumentRepository(mysqlDB)
	sessionRepo := repository.NewSessionRepository(mysqlDB)
	messageRepo := repository.NewMessageRepository(mysqlDB)

	cleanupService := appsvc.NewCleanupService(
		documentRepo,
		sessionRepo,
		gcs,
		index,
		cfg.VectorIndex.MyDocsIndexID,
	)

	messageWorker := worker.NewMessagePersistWorker(mqConn, messageRepo, cfg.RabbitMQ.MessagePersistQueue)
	if err := messageWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start message worker failed: %w", err)
	}

	indexWorker := worker.NewIndexWorker(
		mqConn,
		documentRepo,
		sessionRepo,
		gcs,
		index,
		cfg.RabbitMQ.DocumentIndexQueue,
		cfg.VectorIndex.MyDocsIndexID,
	)
	if err := indexWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start index worker failed: %w", err)
	}

	sweepWorker := worker.NewSweepWorker(
		cleanupService,
		time.Duration(cfg.Session.SweepIntervalSeconds)*time.Second,
		cfg.Session.SweepBatchSize,
	)
	sweepWorker.Start(ctx)

	return &App{
		Config:        cfg,
		MySQL:         mysqlDB,
		Redis:         redisCli,
		MQConn:        mqConn,
		GCS:           gcs,
		VectorIndex:   index,
		Cleanup:       cleanupService,
		MessageWorker: messageWorker,
		IndexWorker:   indexWorker,
		SweepWorker:   sweepWorker,
		StartedAt:     time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.SweepWorker != nil {
		a.SweepWorker.Close()
	}
	if a.IndexWorker != nil {
		a.IndexWorker.Close()
	}
	if a.MessageWorker != nil {
		a.MessageWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.GCS != nil {
		if err := a.GCS.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
