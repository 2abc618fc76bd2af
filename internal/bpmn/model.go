package bpmn

import (
	"context"
	"errors"

	"bpmn-backend/internal/llm"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModel 流水线只需要一次性生成，llm.Client 与 eino 的模型都满足
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.Message, error)
}

// ask 渲染提示词并调用一次模型。空回复返回 llm.ErrEmptyResponse。
func ask(ctx context.Context, m ChatModel, prompts *Prompts, id PromptID, vars map[string]any) (string, error) {
	msgs, err := prompts.Render(ctx, id, vars)
	if err != nil {
		return "", err
	}
	return generate(ctx, m, msgs)
}

func generate(ctx context.Context, m ChatModel, msgs []*schema.Message) (string, error) {
	out, err := m.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	if out == nil || out.Content == "" {
		return "", llm.ErrEmptyResponse
	}
	return out.Content, nil
}

func isEmptyResponse(err error) bool {
	return errors.Is(err, llm.ErrEmptyResponse)
}
