package model

// ProcessBPMNRequest previous_diagram 与 piperflow_text 二选一
type ProcessBPMNRequest struct {
	UserPrompt           string `json:"user_prompt" binding:"required"`
	PreviousDiagram      string `json:"previous_diagram"`
	PiperflowText        string `json:"piperflow_text"`
	Recommendations      string `json:"recommendations"`
	BusinessRequirements string `json:"business_requirements"`
}

// Diagram 返回实际使用的已有流程图
func (r ProcessBPMNRequest) Diagram() string {
	if r.PreviousDiagram != "" {
		return r.PreviousDiagram
	}
	return r.PiperflowText
}

type DetermineTypeRequest struct {
	Message string `json:"message" binding:"required"`
}

type RecommendationRequest struct {
	PiperflowText        string `json:"piperflow_text" binding:"required"`
	CurrentProcess       string `json:"current_process"`
	BusinessRequirements string `json:"business_requirements"`
}

type GenerateDiagramRequest struct {
	Description string `json:"description"`
	RequestID   string `json:"request_id"`
}

// LLMRequest 直接转发给模型的请求，零值字段使用默认值
type LLMRequest struct {
	Prompt      string   `json:"prompt" binding:"required"`
	Model       string   `json:"model"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature *float32 `json:"temperature"`
	Role        string   `json:"role"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name"`
}

type CreateChatRequest struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
}

type UpdateChatRequest struct {
	Name string `json:"name" binding:"required"`
}

type CreateEntryRequest struct {
	UserID          int64  `json:"user_id"`
	ChatID          int64  `json:"chat_id" binding:"required"`
	Message         string `json:"message"`
	Response        string `json:"response"`
	Recommendations string `json:"recommendations"`
	PiperflowText   string `json:"piperflow_text"`
	Image           string `json:"image"`
}
