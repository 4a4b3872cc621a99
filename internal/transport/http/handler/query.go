package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docuquery/internal/rag"
	"docuquery/internal/transport/http/response"
)

type QueryHandler struct {
	service *rag.Service
}

func NewQueryHandler(service *rag.Service) *QueryHandler {
	return &QueryHandler{service: service}
}

type QueryRequest struct {
	Query                 string `json:"query" binding:"required"`
	TopK                  int    `json:"top_k"`
	IncludeAutoEnrichment bool   `json:"include_auto_enrichment"`
}

// Query answers one natural-language question against the knowledge base.
func (h *QueryHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	answer, err := h.service.Query(c.Request.Context(), rag.QueryInput{
		Query:                 req.Query,
		TopK:                  req.TopK,
		IncludeAutoEnrichment: req.IncludeAutoEnrichment,
	})
	if err != nil {
		if errors.Is(err, rag.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "query failed")
		return
	}
	response.OK(c, answer)
}
