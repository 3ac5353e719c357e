package classifyintent

type Input struct {
	Message string `json:"message"`
}

type Output struct {
	Category           string            `json:"category"`
	Subcategory        string            `json:"subcategory,omitempty"`
	Confidence         float64           `json:"confidence"`
	LikelyTemplates    []string          `json:"likelyTemplates"`
	NeedsClarification bool              `json:"needsClarification"`
	Questions          []string          `json:"questions,omitempty"`
	ExtractedFields    map[string]string `json:"extractedFields,omitempty"`
	FallbackUsed       bool              `json:"fallbackUsed"`
}
