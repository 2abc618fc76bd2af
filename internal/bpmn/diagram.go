package bpmn

import "strings"

const titleMarker = "title:"

// CleanDiagramText 提取模型回答中的 PiperFlow 文本：
// 取第一个代码块的内容，去掉双引号，丢弃 title: 之前的说明文字
func CleanDiagramText(raw string) string {
	text := extractFenced(raw)
	text = strings.ReplaceAll(text, `"`, "")

	if idx := strings.Index(text, titleMarker); idx > 0 {
		text = text[idx:]
	}
	return strings.TrimSpace(text)
}

func extractFenced(raw string) string {
	lines := strings.Split(raw, "\n")
	start := -1
	for i, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		return strings.Join(lines[start+1:i], "\n")
	}
	if start >= 0 {
		// 未闭合的代码块
		return strings.Join(lines[start+1:], "\n")
	}
	return raw
}
