// internal/models/document.go
package models

type DocumentRequest struct {
	Message string            `json:"message"`
	AgentID string            `json:"agentId,omitempty"`
	Context map[string]string `json:"context,omitempty"`
}

type DocumentResponse struct {
	Content          string           `json:"content"`
	TemplateID       string           `json:"templateId"`
	TemplateName     string           `json:"templateName"`
	ProcessingTimeMs int64            `json:"processingTimeMs"`
	TokensUsed       int              `json:"tokensUsed"`
	Confidence       float64          `json:"confidence"`
	Metadata         ResponseMetadata `json:"metadata"`
}

type ResponseMetadata struct {
	RequestID          string           `json:"requestId"`
	TraceID            string           `json:"traceId,omitempty"`
	Category           Category         `json:"category"`
	Subcategory        string           `json:"subcategory,omitempty"`
	Alternatives       []string         `json:"alternatives,omitempty"`
	StageTimings       map[string]int64 `json:"stageTimings"`
	FallbackTemplate   bool             `json:"fallbackTemplate"`
	MissingFields      []string         `json:"missingFields,omitempty"`
	InvalidFields      []string         `json:"invalidFields,omitempty"`
	NeedsClarification bool             `json:"needsClarification"`
	Questions          []string         `json:"questions,omitempty"`
	InstructionTokens  int              `json:"instructionTokens"`
}

type BatchResult struct {
	Index    int               `json:"index"`
	Response *DocumentResponse `json:"response,omitempty"`
	Error    string            `json:"error,omitempty"`
	Code     string            `json:"code,omitempty"`
}
