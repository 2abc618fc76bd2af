package bpmn

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"bpmn-backend/pkg/tracer"
)

const DefaultMaxRecommendations = 5

var (
	emphasisReplacer = strings.NewReplacer("**", "", "__", "", "*", "", "`", "")
	// "1." "2)" "- " "• " 等列表前缀
	listPrefix = regexp.MustCompile(`^(\d+[.)]|[-•–])\s*`)
)

// Recommender 根据流程图和业务要求生成改进建议
type Recommender struct {
	model    ChatModel
	prompts  *Prompts
	maxItems int
}

func NewRecommender(model ChatModel, prompts *Prompts, maxItems int) *Recommender {
	if maxItems <= 0 {
		maxItems = DefaultMaxRecommendations
	}
	return &Recommender{model: model, prompts: prompts, maxItems: maxItems}
}

// Recommend 返回格式化后的编号列表
func (r *Recommender) Recommend(ctx context.Context, diagram, process, business string) (string, error) {
	ctx, span := tracer.Start(ctx, "bpmn.recommend")
	defer span.End()

	raw, err := ask(ctx, r.model, r.prompts, PromptRecommendations, map[string]any{
		"diagram":         diagram,
		"current_process": process,
		"business":        business,
		"max_items":       r.maxItems,
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return FormatRecommendations(raw, r.maxItems), nil
}

// FormatRecommendations 去掉 markdown 强调符号，保留前 maxItems 条并重新编号
func FormatRecommendations(raw string, maxItems int) string {
	if maxItems <= 0 {
		maxItems = DefaultMaxRecommendations
	}

	var items []string
	var plain []string
	hasList := false
	// 空行之后的文字不再算作续行
	joinable := false

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(emphasisReplacer.Replace(line))
		line = strings.TrimSpace(strings.TrimLeft(line, "#"))
		if line == "" {
			joinable = false
			continue
		}

		if loc := listPrefix.FindStringIndex(line); loc != nil {
			hasList = true
			if item := strings.TrimSpace(line[loc[1]:]); item != "" {
				items = append(items, item)
				joinable = true
			}
			continue
		}

		plain = append(plain, line)
		// 列表项的续行并入上一条
		if joinable && len(items) > 0 {
			items[len(items)-1] += " " + line
		}
	}

	if !hasList {
		items = plain
	}
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	out := make([]string, len(items))
	for i, item := range items {
		out[i] = fmt.Sprintf("%d. %s", i+1, item)
	}
	return strings.Join(out, "\n")
}
