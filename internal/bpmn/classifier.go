package bpmn

import (
	"context"

	"bpmn-backend/pkg/logger"
	"bpmn-backend/pkg/tracer"
)

// Classifier 通过一次模型调用判断请求类型
type Classifier struct {
	model   ChatModel
	prompts *Prompts
}

func NewClassifier(model ChatModel, prompts *Prompts) *Classifier {
	return &Classifier{model: model, prompts: prompts}
}

// Classify 无法识别的回答按 KindCreateNew 处理，传输错误直接返回
func (c *Classifier) Classify(ctx context.Context, text string) (RequestKind, error) {
	ctx, span := tracer.Start(ctx, "bpmn.classify")
	defer span.End()

	answer, err := ask(ctx, c.model, c.prompts, PromptClassify, map[string]any{"input": text})
	if err != nil && !isEmptyResponse(err) {
		span.RecordError(err)
		return "", err
	}

	kind, ok := ParseKind(answer)
	if !ok {
		logger.Warnf("unrecognized request type %q, falling back to %s", answer, KindCreateNew)
		return KindCreateNew, nil
	}
	return kind, nil
}
