package llm_test

import (
	"strings"
	"testing"

	"bpmn-backend/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulate_ConcatenatesInOrder(t *testing.T) {
	body := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		``,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		``,
		`data: [DONE]`,
		``,
	}, "\n")

	text, err := llm.Accumulate(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
}

func TestAccumulate_StopsAtDone(t *testing.T) {
	body := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"A"}}]}`,
		`data: [DONE]`,
		`data: {"choices":[{"delta":{"content":"B"}}]}`,
	}, "\n")

	text, err := llm.Accumulate(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "A", text)
}

func TestAccumulate_BareDoneLine(t *testing.T) {
	body := "{\"choices\":[{\"delta\":{\"content\":\"X\"}}]}\n[DONE]\n{\"choices\":[{\"delta\":{\"content\":\"Y\"}}]}\n"

	text, err := llm.Accumulate(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "X", text)
}

func TestAccumulate_SkipsMalformedLines(t *testing.T) {
	body := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"a"}}]}`,
		`data: {not json`,
		`: keep-alive`,
		`data: {"choices":[]}`,
		`data: {"choices":[{"delta":{}}]}`,
		`data: {"choices":[{"delta":{"content":"b"}}]}`,
	}, "\n")

	text, err := llm.Accumulate(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "ab", text)
}

func TestAccumulate_PreservesWhitespace(t *testing.T) {
	body := `data: {"choices":[{"delta":{"content":"  line one\n"}}]}` + "\n" +
		`data: {"choices":[{"delta":{"content":"line two  "}}]}` + "\n"

	text, err := llm.Accumulate(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "  line one\nline two  ", text)
}

func TestAccumulate_Empty(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no lines", ""},
		{"only done", "data: [DONE]\n"},
		{"only garbage", "data: oops\nnope\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := llm.Accumulate(strings.NewReader(tt.body))
			assert.ErrorIs(t, err, llm.ErrEmptyResponse)
		})
	}
}

func TestAccumulator_Feed(t *testing.T) {
	acc := llm.NewAccumulator()

	delta, done := acc.Feed(`data: {"choices":[{"delta":{"content":"x"}}]}`)
	assert.Equal(t, "x", delta)
	assert.False(t, done)

	delta, done = acc.Feed("   ")
	assert.Empty(t, delta)
	assert.False(t, done)

	_, done = acc.Feed("data: [DONE]")
	assert.True(t, done)
	assert.True(t, acc.Done())

	// 结束后的数据被忽略
	delta, done = acc.Feed(`data: {"choices":[{"delta":{"content":"y"}}]}`)
	assert.Empty(t, delta)
	assert.True(t, done)

	text, err := acc.Result()
	require.NoError(t, err)
	assert.Equal(t, "x", text)
}
