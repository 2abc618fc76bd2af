package bpmn

import (
	"context"
	"fmt"
	"strings"

	"bpmn-backend/pkg/logger"

	"github.com/cloudwego/eino/schema"
)

// TemplateInput 选择生成模板所需的上下文
type TemplateInput struct {
	Kind                 RequestKind
	UserPrompt           string
	PreviousDiagram      string
	Recommendations      string
	BusinessRequirements string
}

// SelectTemplate 按请求类型填充生成模板，返回实际使用的类型。
// 需要已有流程图但未提供时降级为 KindCreateNew。
func (p *Prompts) SelectTemplate(ctx context.Context, in TemplateInput) (RequestKind, []*schema.Message, error) {
	kind := in.Kind
	if kind.NeedsDiagram() && strings.TrimSpace(in.PreviousDiagram) == "" {
		logger.Infof("request kind %s has no previous diagram, using %s", kind, KindCreateNew)
		kind = KindCreateNew
	}

	vars := map[string]any{
		"user_prompt": in.UserPrompt,
		"business":    in.BusinessRequirements,
	}

	var id PromptID
	switch kind {
	case KindCreateNew:
		id = PromptCreateNew
	case KindAddElement:
		id = PromptAddElement
		vars["diagram"] = in.PreviousDiagram
	case KindEditExisting:
		id = PromptEditExisting
		vars["diagram"] = in.PreviousDiagram
		vars["recommendations"] = in.Recommendations
	default:
		return "", nil, fmt.Errorf("no template for request kind %q", kind)
	}

	msgs, err := p.Render(ctx, id, vars)
	if err != nil {
		return "", nil, err
	}
	return kind, msgs, nil
}
