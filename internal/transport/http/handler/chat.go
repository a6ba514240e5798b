package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"workdocs-ai/internal/app"
	"workdocs-ai/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

func (h *ChatHandler) Ask(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	sessionID, ok := parseIDParam(c)
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session id")
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.chatService.Ask(c.Request.Context(), app.AskInput{
		UserID:    userID,
		SessionID: sessionID,
		Question:  req.Question,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrQuestionEmpty):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		case errors.Is(err, app.ErrSessionExpired):
			response.Error(c, http.StatusGone, response.CodeSessionExpired, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "send message failed")
		}
		return
	}

	response.OK(c, result)
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	sessionID, ok := parseIDParam(c)
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session id")
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	history, err := h.chatService.GetHistory(c.Request.Context(), userID, sessionID, limit)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get history failed")
		}
		return
	}

	response.OK(c, history)
}
