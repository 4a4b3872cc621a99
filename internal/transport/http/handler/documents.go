package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docuquery/internal/pkg/extract"
	"docuquery/internal/rag"
	"docuquery/internal/transport/http/response"
)

const maxUploadSize = 10 << 20 // 10 MB

type DocumentsHandler struct {
	service *rag.Service
}

func NewDocumentsHandler(service *rag.Service) *DocumentsHandler {
	return &DocumentsHandler{service: service}
}

type CreateDocumentRequest struct {
	Name    string `json:"name"`
	Content string `json:"content" binding:"required"`
}

// Create ingests a document from raw text.
func (h *DocumentsHandler) Create(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), req.Name, req.Content)
	if err != nil {
		writeIngestError(c, err)
		return
	}
	response.OK(c, result)
}

// Upload accepts a multipart form with "file" (.pdf/.txt/.md) and optional
// "name", extracts the text and ingests it.
func (h *DocumentsHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if file.Size > maxUploadSize {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large (max 10MB)")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	text, err := extract.FromFile(file.Filename, f)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupported) {
			response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFormat, "unsupported file format (use .pdf, .txt or .md)")
			return
		}
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to extract text: "+err.Error())
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	}

	result, err := h.service.Ingest(c.Request.Context(), name, text)
	if err != nil {
		writeIngestError(c, err)
		return
	}
	response.OK(c, result)
}

// List returns document ids and metadata only.
func (h *DocumentsHandler) List(c *gin.Context) {
	docs, err := h.service.ListDocuments()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentsHandler) Delete(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}
	if err := h.service.DeleteDocument(id); err != nil {
		if errors.Is(err, rag.ErrDocumentNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		return
	}
	response.OK(c, gin.H{"deleted_document_id": id})
}

func writeIngestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, rag.ErrEmptyDocument):
		response.Error(c, http.StatusBadRequest, response.CodeEmptyDocument, err.Error())
	case errors.Is(err, rag.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ingest failed: "+err.Error())
	}
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	s := c.Param(key)
	u, err := strconv.ParseUint(s, 10, 64)
	return uint(u), err
}
