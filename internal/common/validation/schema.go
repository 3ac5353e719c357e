package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema, safe for concurrent use.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// Compile parses a JSON schema document. name is used in error messages.
func Compile(name, schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: s}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(name, schemaJSON string) *Schema {
	s, err := Compile(name, schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a decoded Go value (maps, slices, structs).
func (s *Schema) Validate(document interface{}) *ValidationResult {
	return s.run(gojsonschema.NewGoLoader(document))
}

// ValidateBytes checks a raw JSON document.
func (s *Schema) ValidateBytes(raw []byte) *ValidationResult {
	return s.run(gojsonschema.NewBytesLoader(raw))
}

func (s *Schema) run(loader gojsonschema.JSONLoader) *ValidationResult {
	result, err := s.schema.Validate(loader)
	if err != nil {
		return &ValidationResult{
			Valid:  false,
			Errors: []ValidationError{{Field: "(root)", Message: err.Error(), Code: "malformed"}},
		}
	}
	if result.Valid() {
		return &ValidationResult{Valid: true}
	}

	out := &ValidationResult{Valid: false}
	for _, re := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   re.Field(),
			Message: re.Description(),
			Code:    re.Type(),
		})
	}
	return out
}

// Err converts a failed result into an error naming the schema.
func (s *Schema) Err(vr *ValidationResult) error {
	if vr == nil || vr.Valid {
		return nil
	}
	return fmt.Errorf("%s: %s", s.name, strings.Join(vr.GetErrorMessages(), "; "))
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, 0, len(vr.Errors))
	for _, e := range vr.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, e := range vr.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s\-()]{8,}\d`)
)

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone) && phonePattern.FindString(phone) == strings.TrimSpace(phone)
}

// MaskPhoneNumbers replaces every digit but the last three of each phone
// number found in text with '*'.
func MaskPhoneNumbers(text string) string {
	return phonePattern.ReplaceAllStringFunc(text, func(number string) string {
		digits := 0
		for _, r := range number {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		var b strings.Builder
		seen := 0
		for _, r := range number {
			if r >= '0' && r <= '9' {
				seen++
				if seen <= digits-3 {
					b.WriteRune('*')
					continue
				}
			}
			b.WriteRune(r)
		}
		return b.String()
	})
}
