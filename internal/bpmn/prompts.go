package bpmn

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed prompts/*.txt
var promptsFS embed.FS

type PromptID string

const (
	PromptValidate        PromptID = "validate"
	PromptClassify        PromptID = "classify"
	PromptCreateNew       PromptID = "create_new"
	PromptAddElement      PromptID = "add_element"
	PromptEditExisting    PromptID = "edit_existing"
	PromptRecommendations PromptID = "recommendations"
)

// Prompts 内嵌提示词模板的注册表，系统提示词在构造时注入
type Prompts struct {
	systemPrompt string
	grammar      string

	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
}

func NewPrompts(systemPrompt string) (*Prompts, error) {
	grammar, err := readPrompt("prompts/grammar.txt")
	if err != nil {
		return nil, err
	}
	return &Prompts{
		systemPrompt: systemPrompt,
		grammar:      grammar,
		cache:        make(map[PromptID]einoprompt.ChatTemplate),
	}, nil
}

// Render 填充模板变量，返回 system + user 两条消息
func (p *Prompts) Render(ctx context.Context, id PromptID, vars map[string]any) ([]*schema.Message, error) {
	tpl, err := p.template(id)
	if err != nil {
		return nil, err
	}

	values := make(map[string]any, len(vars)+2)
	for k, v := range vars {
		values[k] = v
	}
	values["system_prompt"] = p.systemPrompt
	values["grammar"] = p.grammar

	msgs, err := tpl.Format(ctx, values)
	if err != nil {
		return nil, fmt.Errorf("format prompt %s: %w", id, err)
	}
	if p.systemPrompt == "" && len(msgs) > 0 && msgs[0].Role == schema.System {
		msgs = msgs[1:]
	}
	return msgs, nil
}

func (p *Prompts) template(id PromptID) (einoprompt.ChatTemplate, error) {
	p.mu.RLock()
	if tpl, ok := p.cache[id]; ok {
		p.mu.RUnlock()
		return tpl, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if tpl, ok := p.cache[id]; ok {
		return tpl, nil
	}

	user, err := readPrompt(promptFile(id))
	if err != nil {
		return nil, fmt.Errorf("unknown prompt id: %s", id)
	}

	tpl := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system_prompt}"),
		schema.UserMessage(user),
	)
	p.cache[id] = tpl
	return tpl, nil
}

func promptFile(id PromptID) string {
	return "prompts/" + string(id) + ".txt"
}

func readPrompt(path string) (string, error) {
	b, err := promptsFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// userText 取最后一条用户消息，日志与测试使用
func userText(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == schema.User {
			return msgs[i].Content
		}
	}
	return ""
}
