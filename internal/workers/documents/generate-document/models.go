package generatedocument

type Input struct {
	Message string            `json:"message"`
	AgentID string            `json:"agentId,omitempty"`
	Context map[string]string `json:"context,omitempty"`
}

// Output is written back to the process instance. Content is empty when
// the request needs clarification; Questions then holds what to ask.
type Output struct {
	DocumentGenerated  bool     `json:"documentGenerated"`
	Content            string   `json:"documentContent"`
	TemplateID         string   `json:"templateId,omitempty"`
	Category           string   `json:"category"`
	Confidence         float64  `json:"confidence"`
	NeedsClarification bool     `json:"needsClarification"`
	Questions          []string `json:"questions,omitempty"`
	MissingFields      []string `json:"missingFields,omitempty"`
	TokensUsed         int      `json:"tokensUsed"`
	RequestID          string   `json:"requestId"`
	FallbackTemplate   bool     `json:"fallbackTemplate"`
}

const inputSchema = `{
	"type": "object",
	"required": ["message"],
	"properties": {
		"message": {"type": "string", "minLength": 1, "maxLength": 4000},
		"agentId": {"type": "string"},
		"context": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		}
	}
}`
