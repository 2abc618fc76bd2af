package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"bpmn-backend/internal/model"
	"bpmn-backend/internal/ocr"
	"bpmn-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type OCRHandler struct {
	service *ocr.Service
}

func NewOCRHandler(service *ocr.Service) *OCRHandler {
	return &OCRHandler{service: service}
}

// Recognize 接收 multipart 字段 file，仅支持 PDF
func (h *OCRHandler) Recognize(c *gin.Context) {
	if !h.service.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "OCR service is not available"})
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": ocr.ErrNotPDF.Error()})
		return
	}
	if limit := h.service.MaxUploadBytes(); limit > 0 && header.Size > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file is too large"})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.ExtractPDF(c.Request.Context(), data)
	switch {
	case errors.Is(err, ocr.ErrNotPDF):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ocr.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		logger.Errorf("ocr failed for %s: %v", header.Filename, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.OCRResponse{Text: result.Text, Pages: result.Pages})
}
