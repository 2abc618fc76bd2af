package bpmn

import (
	"context"
	"strings"
	"sync"

	"bpmn-backend/internal/config"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	stepValidate  = "validate"
	stepClassify  = "classify"
	stepRecommend = "recommend"
	stepGenerate  = "generate"
)

type reply struct {
	text string
	err  error
}

// scriptedModel 根据提示词内容区分调用阶段，按顺序返回预设回答
type scriptedModel struct {
	mu      sync.Mutex
	replies map[string][]reply
	calls   map[string][]string
}

func newScriptedModel() *scriptedModel {
	return &scriptedModel{
		replies: make(map[string][]reply),
		calls:   make(map[string][]string),
	}
}

func (m *scriptedModel) on(step string, replies ...reply) *scriptedModel {
	m.replies[step] = append(m.replies[step], replies...)
	return m
}

func (m *scriptedModel) count(step string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls[step])
}

func (m *scriptedModel) prompt(step string, i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[step][i]
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.Message, error) {
	text := userText(input)
	step := stepOf(text)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[step] = append(m.calls[step], text)

	queue := m.replies[step]
	if len(queue) == 0 {
		return schema.AssistantMessage("", nil), nil
	}
	r := queue[0]
	if len(queue) > 1 {
		m.replies[step] = queue[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	return schema.AssistantMessage(r.text, nil), nil
}

func stepOf(prompt string) string {
	switch {
	case strings.Contains(prompt, "Ответьте строго YES или NO"):
		return stepValidate
	case strings.Contains(prompt, "TYPE_1, TYPE_2 или TYPE_3"):
		return stepClassify
	case strings.Contains(prompt, "Не пиши код PiperFlow"):
		return stepRecommend
	default:
		return stepGenerate
	}
}

type renderCall struct {
	text string
	dst  Destination
}

// scriptedRenderer 按顺序返回预设结果，最后一个结果重复使用
type scriptedRenderer struct {
	mu      sync.Mutex
	results []reply
	calls   []renderCall
}

func (r *scriptedRenderer) Render(ctx context.Context, text string, dst Destination) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, renderCall{text: text, dst: dst})

	res := reply{text: "PNG"}
	if len(r.results) > 0 {
		res = r.results[0]
		if len(r.results) > 1 {
			r.results = r.results[1:]
		}
	}
	if res.err != nil {
		return nil, res.err
	}
	return []byte(res.text), nil
}

type archivedDiagram struct {
	text   string
	image  []byte
	format string
}

type memoryArchive struct {
	saved []archivedDiagram
	err   error
}

func (a *memoryArchive) SaveDiagram(ctx context.Context, text string, image []byte, format string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.saved = append(a.saved, archivedDiagram{text: text, image: image, format: format})
	return "diagrams/test." + format, nil
}

const testSystemPrompt = "Ты бизнес-консультант."

func mustPrompts() *Prompts {
	p, err := NewPrompts(testSystemPrompt)
	if err != nil {
		panic(err)
	}
	return p
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		BusinessRequirements: config.DefaultBusinessRequirements,
		AutoRecommendations:  true,
		MaxRecommendations:   5,
		RenderMaxAttempts:    3,
		RenderDelay:          0,
	}
}

const sampleDiagram = `title: Обработка заявки
colourtheme: BLUEMOUNTAIN

pool: Компания
    lane: Менеджер
        (start) as start_event
        [Проверить заявку] as check
    lane: Бухгалтер
        [Оплатить счёт] as pay
        (end) as end_event

        start_event -> check -> pay -> end_event

footer: Заявка проходит через менеджера и бухгалтера`
