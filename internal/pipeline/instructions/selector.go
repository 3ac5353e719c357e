// Package instructions selects the per-template micro-instructions sent to
// the completion service in place of a full system prompt.
package instructions

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/common/tokens"
	"docgen-workers/internal/common/validation"
	"docgen-workers/internal/models"

	"gopkg.in/yaml.v3"
)

// ErrUnknownCategory is returned when nothing resolves and the category has
// no generic bundle.
var ErrUnknownCategory = errors.New("UNKNOWN_CATEGORY")

const defaultMaxBundles = 3

//go:embed bundles.yaml
var defaultBundles []byte

var bundleSchema = validation.MustCompile("instruction bundles", `{
	"type": "object",
	"required": ["bundles"],
	"properties": {
		"targetTokens": {"type": "integer", "minimum": 1},
		"bundles": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["category", "instructions"],
				"properties": {
					"templateId": {"type": "string"},
					"category": {"enum": ["registration", "email", "viewing", "agreement", "social"]},
					"instructions": {"type": "string", "minLength": 1},
					"requiredFields": {"type": "array", "items": {"type": "string"}},
					"optionalFields": {"type": "array", "items": {"type": "string"}},
					"validationRules": {
						"type": "object",
						"additionalProperties": {
							"type": "object",
							"additionalProperties": false,
							"properties": {
								"format": {"type": "string"},
								"numeric": {"type": "string"},
								"percentage": {"type": "string"},
								"email": {"type": "string"},
								"phone": {"type": "string"}
							}
						}
					},
					"outputFormat": {
						"type": "object",
						"additionalProperties": false,
						"properties": {
							"boldLabels": {"type": "boolean"},
							"maskPhoneNumbers": {"type": "boolean"},
							"includeSubject": {"type": "boolean"},
							"skipConfirmation": {"type": "boolean"}
						}
					},
					"estimatedTokens": {"type": "integer", "minimum": 0}
				}
			}
		}
	}
}`)

type bundleFile struct {
	TargetTokens int                             `yaml:"targetTokens"`
	Bundles      []models.MicroInstructionBundle `yaml:"bundles"`
}

type Selector struct {
	byTemplate map[string]models.MicroInstructionBundle
	generic    map[models.Category]models.MicroInstructionBundle
	maxBundles int
	estimator  tokens.Estimator
	log        logger.Logger
}

type Option func(*Selector)

// WithMaxBundles caps how many template bundles one classification selects.
func WithMaxBundles(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.maxBundles = n
		}
	}
}

func WithEstimator(est tokens.Estimator) Option {
	return func(s *Selector) { s.estimator = est }
}

func New(log logger.Logger, opts ...Option) (*Selector, error) {
	return NewFromYAML(defaultBundles, log, opts...)
}

func NewFromYAML(data []byte, log logger.Logger, opts ...Option) (*Selector, error) {
	s := &Selector{
		byTemplate: make(map[string]models.MicroInstructionBundle),
		generic:    make(map[models.Category]models.MicroInstructionBundle),
		maxBundles: defaultMaxBundles,
		estimator:  tokens.Default(),
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse bundles: %w", err)
	}
	if err := bundleSchema.Err(bundleSchema.Validate(raw)); err != nil {
		return nil, err
	}
	var bf bundleFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("decode bundles: %w", err)
	}
	if bf.TargetTokens == 0 {
		bf.TargetTokens = 35
	}

	for _, b := range bf.Bundles {
		if b.EstimatedTokens == 0 {
			b.EstimatedTokens = s.estimator.Count(b.Instructions)
		}
		if b.EstimatedTokens > bf.TargetTokens {
			s.log.Warn("Instruction bundle exceeds token target", map[string]interface{}{
				"templateId": b.TemplateID,
				"category":   b.Category,
				"tokens":     b.EstimatedTokens,
				"target":     bf.TargetTokens,
			})
		}

		if b.TemplateID == "" {
			if _, dup := s.generic[b.Category]; dup {
				return nil, fmt.Errorf("duplicate generic bundle for %s", b.Category)
			}
			s.generic[b.Category] = b
			continue
		}
		if _, dup := s.byTemplate[b.TemplateID]; dup {
			return nil, fmt.Errorf("duplicate bundle for template %s", b.TemplateID)
		}
		s.byTemplate[b.TemplateID] = b
	}
	return s, nil
}

// Bundle returns the bundle registered for templateID.
func (s *Selector) Bundle(templateID string) (models.MicroInstructionBundle, bool) {
	b, ok := s.byTemplate[templateID]
	if !ok {
		return models.MicroInstructionBundle{}, false
	}
	return cloneBundle(b), true
}

// SelectInstructions resolves the bundles for templateIDs in order. Unknown
// ids are skipped; when none resolve the category's generic bundle is used.
func (s *Selector) SelectInstructions(templateIDs []string, category models.Category) ([]models.MicroInstructionBundle, error) {
	var out []models.MicroInstructionBundle
	seen := make(map[string]bool, len(templateIDs))
	for _, id := range templateIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if b, ok := s.byTemplate[id]; ok {
			out = append(out, cloneBundle(b))
		}
	}
	if len(out) > 0 {
		return out, nil
	}

	generic, ok := s.generic[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return []models.MicroInstructionBundle{cloneBundle(generic)}, nil
}

// SelectForClassification merges the bundles for the top likely templates
// into one instruction block.
func (s *Selector) SelectForClassification(c models.IntentClassification) (models.InstructionSelection, error) {
	ids := c.LikelyTemplates
	if len(ids) > s.maxBundles {
		ids = ids[:s.maxBundles]
	}
	bundles, err := s.SelectInstructions(ids, c.Category)
	if err != nil {
		return models.InstructionSelection{}, err
	}

	var b strings.Builder
	b.WriteString(bundles[0].Instructions)
	if directives := formatDirectives(bundles[0]); len(directives) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(directives, " "))
	}
	if len(bundles) > 1 {
		b.WriteString("\nAlternatives:")
		for i, alt := range bundles[1:] {
			fmt.Fprintf(&b, "\n%d. %s", i+1, alt.TemplateID)
		}
	}

	sel := models.InstructionSelection{
		Instructions:  b.String(),
		TemplateCount: len(bundles),
		FocusAreas:    []string{},
		Bundles:       bundles,
	}
	seen := map[string]bool{}
	for _, bundle := range bundles {
		sel.EstimatedTokens += bundle.EstimatedTokens
		for _, f := range bundle.RequiredFields {
			if !seen[f] {
				seen[f] = true
				sel.FocusAreas = append(sel.FocusAreas, f)
			}
		}
	}
	return sel, nil
}

// formatDirectives renders the bundle's output flags and field format hints
// as short sentences for the system text.
func formatDirectives(b models.MicroInstructionBundle) []string {
	var out []string
	if b.OutputFormat.IncludeSubject {
		out = append(out, "Start with a Subject: line.")
	}
	if b.OutputFormat.BoldLabels {
		out = append(out, "Bold labels.")
	}
	if b.OutputFormat.SkipConfirmation {
		out = append(out, "No closing confirmation request.")
	}
	fields := make([]string, 0, len(b.ValidationRules))
	for f, rules := range b.ValidationRules {
		if rules[validation.RuleFormat] != "" {
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)
	for _, f := range fields {
		out = append(out, fmt.Sprintf("%s: %s.", f, strings.TrimSuffix(b.ValidationRules[f][validation.RuleFormat], ".")))
	}
	return out
}

func cloneBundle(b models.MicroInstructionBundle) models.MicroInstructionBundle {
	out := b
	out.RequiredFields = append([]string(nil), b.RequiredFields...)
	out.OptionalFields = append([]string(nil), b.OptionalFields...)
	if b.ValidationRules != nil {
		out.ValidationRules = make(map[string]map[string]string, len(b.ValidationRules))
		for field, rules := range b.ValidationRules {
			inner := make(map[string]string, len(rules))
			for k, v := range rules {
				inner[k] = v
			}
			out.ValidationRules[field] = inner
		}
	}
	return out
}
