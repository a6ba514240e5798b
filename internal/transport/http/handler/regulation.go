package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workdocs-ai/internal/repository"
	"workdocs-ai/internal/transport/http/response"
)

// RegulationHandler serves the shared regulation catalog. The material
// is public to every authenticated user.
type RegulationHandler struct {
	regulationRepo *repository.RegulationRepository
}

func NewRegulationHandler(regulationRepo *repository.RegulationRepository) *RegulationHandler {
	return &RegulationHandler{regulationRepo: regulationRepo}
}

func (h *RegulationHandler) List(c *gin.Context) {
	regulations, err := h.regulationRepo.List()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list regulations failed")
		return
	}
	response.OK(c, regulations)
}
