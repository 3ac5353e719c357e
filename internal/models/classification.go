// internal/models/classification.go
package models

type IntentClassification struct {
	Category           Category          `json:"category"`
	Subcategory        string            `json:"subcategory,omitempty"`
	Confidence         float64           `json:"confidence"`
	LikelyTemplates    []string          `json:"likelyTemplates"`
	RequiredFields     []string          `json:"requiredFields"`
	SuggestedQuestions []string          `json:"suggestedQuestions"`
	NeedsClarification bool              `json:"needsClarification"`
	Fallback           bool              `json:"fallback,omitempty"`
	ExtractedFields    map[string]string `json:"extractedFields,omitempty"`
	Candidates         []Candidate       `json:"candidates,omitempty"`
}

// Candidate is one ranked template id together with the subcategory needed
// to build its cache key.
type Candidate struct {
	TemplateID  string `json:"templateId"`
	Subcategory string `json:"subcategory"`
	Matches     int    `json:"matches"`
}

type OutputFormat struct {
	BoldLabels       bool `json:"boldLabels" yaml:"boldLabels"`
	MaskPhoneNumbers bool `json:"maskPhoneNumbers" yaml:"maskPhoneNumbers"`
	IncludeSubject   bool `json:"includeSubject" yaml:"includeSubject"`
	SkipConfirmation bool `json:"skipConfirmation" yaml:"skipConfirmation"`
}

type MicroInstructionBundle struct {
	TemplateID      string                       `json:"templateId,omitempty" yaml:"templateId"`
	Category        Category                     `json:"category" yaml:"category"`
	Instructions    string                       `json:"instructions" yaml:"instructions"`
	RequiredFields  []string                     `json:"requiredFields" yaml:"requiredFields"`
	OptionalFields  []string                     `json:"optionalFields" yaml:"optionalFields"`
	ValidationRules map[string]map[string]string `json:"validationRules,omitempty" yaml:"validationRules"`
	OutputFormat    OutputFormat                 `json:"outputFormat" yaml:"outputFormat"`
	EstimatedTokens int                          `json:"estimatedTokens" yaml:"estimatedTokens"`
}

type InstructionSelection struct {
	Instructions    string   `json:"instructions"`
	TemplateCount   int      `json:"templateCount"`
	EstimatedTokens int      `json:"estimatedTokens"`
	FocusAreas      []string `json:"focusAreas"`
	// Bundles keeps the selected bundles in selection order for prompt assembly.
	Bundles []MicroInstructionBundle `json:"-"`
}
