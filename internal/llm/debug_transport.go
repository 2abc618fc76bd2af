package llm

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"bpmn-backend/pkg/logger"
)

const redacted = "[REDACTED]"

// DebugTransport 记录发往 LLM 的请求，敏感头和字段会被脱敏
type DebugTransport struct {
	base http.RoundTripper
}

func NewDebugTransport(base http.RoundTripper) *DebugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DebugTransport{base: base}
}

// RoundTrip 实现 http.RoundTripper 接口
func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method == http.MethodPost {
		t.logRequest(req)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		logger.Errorf("[LLM Debug] request failed: %v", err)
		return nil, err
	}
	logger.Debugf("[LLM Debug] response status: %d", resp.StatusCode)
	return resp, nil
}

func (t *DebugTransport) logRequest(req *http.Request) {
	logger.Debugf("[LLM Debug] %s %s", req.Method, req.URL.String())
	for name, values := range req.Header {
		if isSensitiveHeader(name) {
			logger.Debugf("[LLM Debug]   %s: %s", name, redacted)
		} else {
			logger.Debugf("[LLM Debug]   %s: %s", name, strings.Join(values, ", "))
		}
	}

	if req.Body == nil {
		return
	}
	bodyBytes, err := io.ReadAll(req.Body)
	if err != nil {
		logger.Errorf("[LLM Debug] failed to read request body: %v", err)
		return
	}
	// 恢复请求体，以免影响实际请求
	req.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	logger.Debugf("[LLM Debug] body (%d bytes): %s", len(bodyBytes), redactBody(bodyBytes))
}

func isSensitiveHeader(name string) bool {
	switch strings.ToLower(name) {
	case "authorization", "x-api-key", "api-key", "cookie":
		return true
	}
	return false
}

func isSensitiveField(key string) bool {
	k := strings.ToLower(key)
	if k == "max_tokens" {
		return false
	}
	return strings.Contains(k, "key") || strings.Contains(k, "token") ||
		strings.Contains(k, "secret") || strings.Contains(k, "password")
}

// redactBody 对 JSON 请求体中的敏感字段脱敏，非 JSON 原样返回
func redactBody(body []byte) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return string(body)
	}
	redactMap(payload)
	out, err := json.Marshal(payload)
	if err != nil {
		return string(body)
	}
	return string(out)
}

func redactMap(m map[string]interface{}) {
	for k, v := range m {
		if isSensitiveField(k) {
			m[k] = redacted
			continue
		}
		switch val := v.(type) {
		case map[string]interface{}:
			redactMap(val)
		case []interface{}:
			for _, item := range val {
				if nested, ok := item.(map[string]interface{}); ok {
					redactMap(nested)
				}
			}
		}
	}
}
