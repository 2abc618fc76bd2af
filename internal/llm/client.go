package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bpmn-backend/internal/config"
	"bpmn-backend/internal/utils"
	"bpmn-backend/pkg/logger"
	"bpmn-backend/pkg/metrics"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openai "github.com/sashabaranov/go-openai"
)

// 错误响应体最多保留的字节数
const maxErrorBody = 4096

// Client 直接基于 HTTP 的 chat-completions 客户端，实现 eino ChatModel 接口。
// 流式解析由 Accumulator 完成。
type Client struct {
	httpClient *http.Client
	cfg        config.LLMConfig
}

func NewClient(cfg config.LLMConfig) *Client {
	httpClient := utils.NewHTTPClient(cfg.Timeout)
	if cfg.DebugRequest {
		httpClient.Transport = NewDebugTransport(httpClient.Transport)
	}
	return &Client{httpClient: httpClient, cfg: cfg}
}

// NewClientWithHTTP 使用外部 http.Client，测试中指向 httptest 服务
func NewClientWithHTTP(cfg config.LLMConfig, httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient, cfg: cfg}
}

func (c *Client) Generate(ctx context.Context, messages []*schema.Message, opts ...einoModel.Option) (*schema.Message, error) {
	req := c.buildRequest(messages, opts...)
	start := time.Now()

	content, err := c.generate(ctx, req)
	c.observe(req.Model, start, err)
	if err != nil {
		return nil, err
	}

	return schema.AssistantMessage(content, nil), nil
}

func (c *Client) generate(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var content string
	if req.Stream {
		content, err = Accumulate(resp.Body)
		if err != nil {
			return "", err
		}
	} else {
		var out openai.ChatCompletionResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("decode LLM response: %w", err)
		}
		if len(out.Choices) == 0 {
			return "", ErrNoChoices
		}
		content = out.Choices[0].Message.Content
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// Stream 以流的方式返回增量内容，每个 delta 一条消息
func (c *Client) Stream(ctx context.Context, messages []*schema.Message, opts ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	req := c.buildRequest(messages, opts...)
	req.Stream = true
	start := time.Now()

	resp, err := c.do(ctx, req)
	if err != nil {
		c.observe(req.Model, start, err)
		return nil, err
	}

	reader, writer := schema.Pipe[*schema.Message](100)

	go func() {
		defer writer.Close()
		defer resp.Body.Close()

		acc := NewAccumulator()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			delta, done := acc.Feed(scanner.Text())
			if done {
				break
			}
			if delta == "" {
				continue
			}
			if closed := writer.Send(schema.AssistantMessage(delta, nil), nil); closed {
				c.observe(req.Model, start, context.Canceled)
				return
			}
		}

		err := scanner.Err()
		if err == nil && acc.Text() == "" {
			err = ErrEmptyResponse
		}
		if err != nil {
			writer.Send(nil, err)
		}
		c.observe(req.Model, start, err)
	}()

	return reader, nil
}

// BindTools 不支持工具调用
func (c *Client) BindTools(tools []*schema.ToolInfo) error {
	return nil
}

func (c *Client) buildRequest(messages []*schema.Message, opts ...einoModel.Option) openai.ChatCompletionRequest {
	model := c.cfg.Model
	maxTokens := c.cfg.MaxTokens
	temperature := c.cfg.Temperature

	options := einoModel.GetCommonOptions(&einoModel.Options{
		Model:       &model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}, opts...)

	return openai.ChatCompletionRequest{
		Model:       *options.Model,
		Messages:    convertMessages(messages),
		Stream:      c.cfg.Stream,
		MaxTokens:   *options.MaxTokens,
		Temperature: *options.Temperature,
	}
}

func (c *Client) do(ctx context.Context, req openai.ChatCompletionRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal LLM request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build LLM request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call LLM API: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	return resp, nil
}

func (c *Client) observe(model string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		logger.Warnf("LLM call failed (model=%s): %v", model, err)
	}
	metrics.LLMCallTotal.WithLabelValues(model, status).Inc()
	metrics.LLMCallDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
}

// 消息格式转换
func convertMessages(messages []*schema.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		role := string(msg.Role)
		if role == "" {
			role = openai.ChatMessageRoleUser
		}
		result = append(result, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return result
}
