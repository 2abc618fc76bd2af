package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"bpmn-backend/internal/model"
	"bpmn-backend/internal/utils"
	"bpmn-backend/pkg/logger"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
)

// ChatModel 直接转发用的模型，*llm.Client 实现
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.Message, error)
	Stream(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.StreamReader[*schema.Message], error)
}

type LLMHandler struct {
	model ChatModel
}

func NewLLMHandler(m ChatModel) *LLMHandler {
	return &LLMHandler{model: m}
}

func (h *LLMHandler) request(c *gin.Context) ([]*schema.Message, []einoModel.Option, bool) {
	var req model.LLMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, nil, false
	}

	role := schema.User
	if req.Role != "" {
		role = schema.RoleType(req.Role)
	}
	msgs := []*schema.Message{{Role: role, Content: req.Prompt}}

	var opts []einoModel.Option
	if req.Model != "" {
		opts = append(opts, einoModel.WithModel(req.Model))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, einoModel.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature != nil {
		opts = append(opts, einoModel.WithTemperature(*req.Temperature))
	}
	return msgs, opts, true
}

func (h *LLMHandler) Generate(c *gin.Context) {
	msgs, opts, ok := h.request(c)
	if !ok {
		return
	}

	start := time.Now()
	out, err := h.model.Generate(c.Request.Context(), msgs, opts...)
	if err != nil {
		logger.Errorf("llm proxy failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.LLMResponse{
		Response:      out.Content,
		ExecutionTime: time.Since(start).Seconds(),
	})
}

// Stream 以 SSE 转发增量内容，结束时发送 [DONE]
func (h *LLMHandler) Stream(c *gin.Context) {
	msgs, opts, ok := h.request(c)
	if !ok {
		return
	}

	reader, err := h.model.Stream(c.Request.Context(), msgs, opts...)
	if err != nil {
		logger.Errorf("llm stream failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer reader.Close()

	sse := utils.NewSSEWriter(c.Writer)
	c.Status(http.StatusOK)

	for {
		chunk, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Warnf("llm stream interrupted: %v", err)
			sse.WriteJSON("error", gin.H{"error": err.Error()})
			break
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		if err := sse.WriteJSON("", model.StreamChunk{Content: chunk.Content}); err != nil {
			logger.Warnf("client went away: %v", err)
			return
		}
	}
	sse.Close()
}
