package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docuquery/internal/rag"
	"docuquery/internal/transport/http/response"
)

type AdminHandler struct {
	service *rag.Service
}

func NewAdminHandler(service *rag.Service) *AdminHandler {
	return &AdminHandler{service: service}
}

func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stats failed")
		return
	}
	response.OK(c, stats)
}

// Reset clears all documents, chunks and index entries.
func (h *AdminHandler) Reset(c *gin.Context) {
	if err := h.service.Reset(); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "reset failed")
		return
	}
	response.OK(c, gin.H{"reset": true})
}
