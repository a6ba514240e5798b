package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"workdocs-ai/internal/app"
	"workdocs-ai/internal/model"
	"workdocs-ai/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
}

func NewAuthHandler(authService *app.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type SignupRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type CredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid signup payload")
		return
	}

	result, err := h.authService.Register(app.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrUsernameExists):
			response.Error(c, http.StatusBadRequest, response.CodeUsernameExists, err.Error())
		case errors.Is(err, app.ErrEmailExists):
			response.Error(c, http.StatusBadRequest, response.CodeEmailExists, err.Error())
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "register failed")
		}
		return
	}

	response.OK(c, gin.H{
		"token": result.Token,
		"user":  userPayload(result.User),
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid login payload")
		return
	}

	result, err := h.authService.Login(app.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidCredential):
			response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "login failed")
		}
		return
	}

	response.OK(c, gin.H{
		"token": result.Token,
		"user":  userPayload(result.User),
	})
}

// Me resolves the token back to the account, catching tokens that
// outlived their user.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "load account failed")
		return
	}
	if user == nil {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "account no longer exists")
		return
	}

	response.OK(c, userPayload(user))
}

func userPayload(user *model.User) gin.H {
	return gin.H{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	}
}
