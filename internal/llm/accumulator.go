package llm

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	// 单行 SSE 数据最大长度
	maxLineSize = 1 << 20
)

// Accumulator 逐行解析流式响应并拼接 delta 内容
type Accumulator struct {
	sb   strings.Builder
	done bool
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Feed 处理一行原始数据，返回本行贡献的文本以及流是否已结束。
// 无法解析的行被忽略。
func (a *Accumulator) Feed(line string) (string, bool) {
	if a.done {
		return "", true
	}

	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", false
	}
	if trimmed == doneSentinel {
		a.done = true
		return "", true
	}

	payload := strings.TrimPrefix(trimmed, dataPrefix)
	payload = strings.TrimSpace(payload)
	if payload == doneSentinel {
		a.done = true
		return "", true
	}

	var chunk openai.ChatCompletionStreamResponse
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 {
		return "", false
	}

	delta := chunk.Choices[0].Delta.Content
	a.sb.WriteString(delta)
	return delta, false
}

// Done 是否已经收到结束标记
func (a *Accumulator) Done() bool {
	return a.done
}

// Text 当前累积的全部文本
func (a *Accumulator) Text() string {
	return a.sb.String()
}

// Result 返回累积文本，为空时返回 ErrEmptyResponse
func (a *Accumulator) Result() (string, error) {
	if a.sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return a.sb.String(), nil
}

// Accumulate 读取整个流式响应体，遇到 [DONE] 或 EOF 结束
func Accumulate(r io.Reader) (string, error) {
	acc := NewAccumulator()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if _, done := acc.Feed(scanner.Text()); done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}

	return acc.Result()
}
