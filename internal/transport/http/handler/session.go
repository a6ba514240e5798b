package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"workdocs-ai/internal/app"
	"workdocs-ai/internal/transport/http/middleware"
	"workdocs-ai/internal/transport/http/response"
)

type SessionHandler struct {
	sessionService *app.SessionService
}

func NewSessionHandler(sessionService *app.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

type StartSessionRequest struct {
	TTLMinutes int `json:"ttl_minutes" binding:"gte=0"`
}

// Start returns the caller's active session with its expiry pushed out,
// or a fresh one when none is active.
func (h *SessionHandler) Start(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.sessionService.Start(userID, req.TTLMinutes)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrTTLOutOfRange):
			response.Error(c, http.StatusBadRequest, response.CodeTTLOutOfRange, err.Error())
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "start session failed")
		}
		return
	}

	response.OK(c, gin.H{
		"chat_id":    result.Session.ID,
		"expires_at": result.Session.ExpiresAt,
		"is_new":     result.IsNew,
	})
}

func (h *SessionHandler) Get(c *gin.Context) {
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

	session, err := h.sessionService.Get(sessionID, userID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get session failed")
		}
		return
	}

	response.OK(c, gin.H{
		"chat_id":    session.ID,
		"created_at": session.CreatedAt,
		"expires_at": session.ExpiresAt,
		"is_expired": !session.Active(time.Now()),
	})
}

// End terminates the session and reports what cleanup removed. Ending an
// already-expired session succeeds with cleanup.queued=false.
func (h *SessionHandler) End(c *gin.Context) {
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

	result, err := h.sessionService.End(c.Request.Context(), sessionID, userID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "end session failed")
		}
		return
	}

	response.OK(c, result)
}

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok
}

func parseIDParam(c *gin.Context) (uint, bool) {
	id64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id64 == 0 {
		return 0, false
	}
	return uint(id64), true
}
