package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResponse 上游返回的内容为空
	ErrEmptyResponse = errors.New("empty response from LLM API")
	ErrNoChoices     = errors.New("no choices in LLM response")
)

// APIError 上游返回非 2xx 状态码
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("LLM API error: status %d: %s", e.StatusCode, e.Body)
}
