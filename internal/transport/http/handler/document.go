package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"workdocs-ai/internal/app"
	"workdocs-ai/internal/repository"
	"workdocs-ai/internal/transport/http/response"
)

type DocumentHandler struct {
	documentService *app.DocumentService
}

func NewDocumentHandler(documentService *app.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// Upload accepts a multipart form: "file" plus optional "chat_id" (omit
// for a persistent upload) and "doc_type".
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}

	var sessionID uint
	if raw := c.PostForm("chat_id"); raw != "" {
		id64, parseErr := strconv.ParseUint(raw, 10, 64)
		if parseErr != nil || id64 == 0 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid chat_id")
			return
		}
		sessionID = uint(id64)
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "open uploaded file failed")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read uploaded file failed")
		return
	}

	doc, err := h.documentService.Upload(c.Request.Context(), app.UploadInput{
		UserID:    userID,
		SessionID: sessionID,
		FileName:  fileHeader.Filename,
		DocType:   c.PostForm("doc_type"),
		MimeType:  fileHeader.Header.Get("Content-Type"),
		Data:      data,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrDocumentTooLarge):
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodePayloadTooLarge, err.Error())
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		case errors.Is(err, app.ErrSessionExpired):
			response.Error(c, http.StatusGone, response.CodeSessionExpired, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload document failed")
		}
		return
	}

	response.OK(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	filter := repository.ListFilter{DocType: c.Query("doc_type")}
	if raw := c.Query("chat_id"); raw != "" {
		id64, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id64 == 0 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid chat_id")
			return
		}
		filter.SessionID = uint(id64)
	}
	if raw := c.Query("persistent"); raw != "" {
		persistent, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid persistent flag")
			return
		}
		filter.Persistent = &persistent
	}

	docs, err := h.documentService.List(userID, filter)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		}
		return
	}

	response.OK(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	documentID, ok := parseIDParam(c)
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}

	doc, err := h.documentService.Get(userID, documentID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get document failed")
		}
		return
	}

	response.OK(c, doc)
}

// Delete removes the document everywhere it lives and reports per-phase
// outcomes; partial failures come back in the result, not as an error.
func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	documentID, ok := parseIDParam(c)
	if !ok {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}

	result, err := h.documentService.Delete(c.Request.Context(), userID, documentID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		}
		return
	}

	response.OK(c, gin.H{
		"deleted_document_id": documentID,
		"cleanup":             result,
	})
}
