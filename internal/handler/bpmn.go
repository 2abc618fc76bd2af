package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"bpmn-backend/internal/bpmn"
	"bpmn-backend/internal/llm"
	"bpmn-backend/internal/model"
	"bpmn-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Pipeline 流程图生成的全部能力，由 *bpmn.Pipeline 实现
type Pipeline interface {
	Process(ctx context.Context, req bpmn.ChatRequest) (*bpmn.ProcessResult, error)
	DetermineRequestType(ctx context.Context, message string) (bpmn.RequestKind, bool, error)
	Recommend(ctx context.Context, diagram, process, business string) (string, error)
	GenerateDiagram(ctx context.Context, description string) *bpmn.GenerationResult
}

type BPMNHandler struct {
	pipeline Pipeline
}

func NewBPMNHandler(pipeline Pipeline) *BPMNHandler {
	return &BPMNHandler{pipeline: pipeline}
}

func (h *BPMNHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// ProcessBPMN 校验、分类、生成并渲染
func (h *BPMNHandler) ProcessBPMN(c *gin.Context) {
	var req model.ProcessBPMNRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ProcessBPMNResponse{Status: "error", Message: err.Error()})
		return
	}

	result, err := h.pipeline.Process(c.Request.Context(), bpmn.ChatRequest{
		UserPrompt:           req.UserPrompt,
		PreviousDiagram:      req.Diagram(),
		Recommendations:      req.Recommendations,
		BusinessRequirements: req.BusinessRequirements,
	})
	if errors.Is(err, bpmn.ErrNotDomainRelated) {
		c.JSON(http.StatusBadRequest, model.ProcessBPMNResponse{Status: "error", Message: bpmn.RejectionMessage})
		return
	}
	if err != nil {
		logger.Errorf("process_bpmn failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := model.ProcessBPMNResponse{
		Status:          "success",
		Message:         bpmn.SuccessMessage,
		RequestType:     result.Kind.String(),
		DiagramText:     result.DiagramText,
		Recommendations: result.Recommendations,
		Image:           result.Image,
		Format:          result.Format,
		DiagramPath:     result.DiagramPath,
		Attempts:        result.Attempts,
	}
	if !result.Success {
		resp.Status = "error"
		resp.Message = bpmn.FailureMessage
		resp.Error = result.Error
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BPMNHandler) DetermineRequestType(c *gin.Context) {
	var req model.DetermineTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind, related, err := h.pipeline.DetermineRequestType(c.Request.Context(), req.Message)
	if err != nil {
		logger.Errorf("determine_request_type failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.DetermineTypeResponse{Type: kind.String(), IsDomainRelated: related})
}

func (h *BPMNHandler) Recommendations(c *gin.Context) {
	var req model.RecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.RecommendationResponse{Status: "error", Error: err.Error()})
		return
	}

	recs, err := h.pipeline.Recommend(c.Request.Context(), req.PiperflowText, req.CurrentProcess, req.BusinessRequirements)
	if errors.Is(err, llm.ErrEmptyResponse) {
		// 模型返回空内容不算服务端错误
		logger.Warnf("recommendations: %v", err)
		c.JSON(http.StatusOK, model.RecommendationResponse{Status: "error", Error: err.Error()})
		return
	}
	if err != nil {
		logger.Errorf("recommendations failed: %v", err)
		c.JSON(http.StatusInternalServerError, model.RecommendationResponse{Status: "error", Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.RecommendationResponse{Status: "success", Recommendations: recs})
}

// GenerateDiagram 失败时仍返回 200，success=false
func (h *BPMNHandler) GenerateDiagram(c *gin.Context) {
	var req model.GenerateDiagramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.GenerateDiagramResponse{Error: err.Error()})
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		c.JSON(http.StatusBadRequest, model.GenerateDiagramResponse{Error: "description is required"})
		return
	}

	// 客户端可带自己的 request_id，否则沿用中间件生成的
	requestID := req.RequestID
	if requestID == "" {
		requestID = c.GetString("request_id")
	}

	result := h.pipeline.GenerateDiagram(c.Request.Context(), req.Description)
	if !result.Success {
		logger.WithFields(map[string]interface{}{
			"request_id": requestID,
			"attempts":   result.Attempts,
		}).Warnf("generate diagram failed: %s", result.Error)
	}
	c.JSON(http.StatusOK, model.GenerateDiagramResponse{
		Success: result.Success,
		Image:   result.Image,
		Text:    result.DiagramText,
		Error:   result.Error,
	})
}
