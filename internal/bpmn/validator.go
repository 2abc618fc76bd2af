package bpmn

import (
	"context"
	"strings"

	"bpmn-backend/pkg/logger"
	"bpmn-backend/pkg/tracer"
)

// Validator 判断请求是否属于流程建模领域
type Validator struct {
	model   ChatModel
	prompts *Prompts
}

func NewValidator(model ChatModel, prompts *Prompts) *Validator {
	return &Validator{model: model, prompts: prompts}
}

// Validate 只有明确的 NO 才拒绝，其余回答（包括空回答）都视为相关
func (v *Validator) Validate(ctx context.Context, text string) (bool, error) {
	ctx, span := tracer.Start(ctx, "bpmn.validate")
	defer span.End()

	answer, err := ask(ctx, v.model, v.prompts, PromptValidate, map[string]any{"input": text})
	if err != nil {
		if isEmptyResponse(err) {
			logger.Warnf("empty validation answer, treating request as relevant")
			return true, nil
		}
		span.RecordError(err)
		return false, err
	}

	if strings.EqualFold(strings.TrimSpace(answer), "NO") {
		return false, nil
	}
	return true, nil
}
