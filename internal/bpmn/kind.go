package bpmn

import "strings"

// RequestKind 用户请求的意图分类
type RequestKind string

const (
	KindCreateNew    RequestKind = "TYPE_1"
	KindAddElement   RequestKind = "TYPE_2"
	KindEditExisting RequestKind = "TYPE_3"
	// KindUnrelated 请求与流程建模无关
	KindUnrelated RequestKind = "UNRELATED"
)

func (k RequestKind) String() string {
	return string(k)
}

// NeedsDiagram 是否依赖已有的流程图
func (k RequestKind) NeedsDiagram() bool {
	return k == KindAddElement || k == KindEditExisting
}

// ParseKind 规范化模型输出并匹配三种请求类型
func ParseKind(raw string) (RequestKind, bool) {
	label := strings.ToUpper(strings.Trim(raw, " \t\r\n.\"'`*"))
	switch RequestKind(label) {
	case KindCreateNew, KindAddElement, KindEditExisting:
		return RequestKind(label), true
	}
	return "", false
}
