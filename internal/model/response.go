package model

type ProcessBPMNResponse struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	RequestType     string `json:"request_type,omitempty"`
	DiagramText     string `json:"diagram_text,omitempty"`
	Recommendations string `json:"recommendations,omitempty"`
	Image           []byte `json:"image,omitempty"`
	Format          string `json:"format,omitempty"`
	DiagramPath     string `json:"diagram_path,omitempty"`
	Attempts        int    `json:"attempts,omitempty"`
	Error           string `json:"error,omitempty"`
}

type DetermineTypeResponse struct {
	Type            string `json:"type"`
	IsDomainRelated bool   `json:"is_domain_related"`
}

type RecommendationResponse struct {
	Status          string `json:"status"`
	Recommendations string `json:"recommendations"`
	Error           string `json:"error,omitempty"`
}

type GenerateDiagramResponse struct {
	Success bool   `json:"success"`
	Image   []byte `json:"image,omitempty"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

type LLMResponse struct {
	Response      string  `json:"response"`
	ExecutionTime float64 `json:"execution_time"`
}

type StreamChunk struct {
	Content string `json:"content"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type OCRResponse struct {
	Text  string `json:"text"`
	Pages int    `json:"pages"`
}
