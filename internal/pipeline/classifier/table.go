package classifier

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"docgen-workers/internal/common/validation"
	"docgen-workers/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed patterns.yaml
var defaultPatterns []byte

var tableSchema = validation.MustCompile("classifier patterns", `{
	"type": "object",
	"required": ["threshold", "fallback", "funnel", "categories", "fields"],
	"properties": {
		"threshold": {"type": "number", "minimum": 0, "maximum": 1},
		"keywordWeight": {"type": "number", "minimum": 0},
		"patternWeight": {"type": "number", "minimum": 0},
		"fallback": {
			"type": "object",
			"required": ["category", "confidence", "template", "question"],
			"properties": {
				"confidence": {"type": "number", "minimum": 0, "maximum": 1}
			}
		},
		"funnel": {
			"type": "object",
			"required": ["category", "confidence", "subtypeQuestion"]
		},
		"categories": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["name", "keywords", "patterns", "templates"],
				"properties": {
					"name": {"enum": ["registration", "email", "viewing", "agreement", "social"]},
					"keywords": {"type": "array", "items": {"type": "string", "minLength": 1}},
					"patterns": {"type": "array", "items": {"type": "string", "minLength": 1}},
					"requiredFields": {"type": "array", "items": {"type": "string"}},
					"subtypes": {
						"type": "array",
						"items": {
							"type": "object",
							"required": ["name", "keywords", "question"]
						}
					},
					"templates": {
						"type": "array",
						"minItems": 1,
						"items": {
							"type": "object",
							"required": ["id", "subcategory"],
							"properties": {
								"triggers": {"type": "array", "items": {"type": "string"}}
							}
						}
					}
				}
			}
		},
		"fields": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "pattern", "question"]
			}
		}
	}
}`)

type patternFile struct {
	Threshold     float64        `yaml:"threshold"`
	KeywordWeight float64        `yaml:"keywordWeight"`
	PatternWeight float64        `yaml:"patternWeight"`
	Fallback      fallbackSpec   `yaml:"fallback"`
	Funnel        funnelSpec     `yaml:"funnel"`
	Categories    []categorySpec `yaml:"categories"`
	Fields        []fieldSpec    `yaml:"fields"`
}

type fallbackSpec struct {
	Category   string  `yaml:"category"`
	Confidence float64 `yaml:"confidence"`
	Template   string  `yaml:"template"`
	Question   string  `yaml:"question"`
}

type funnelSpec struct {
	Category        string  `yaml:"category"`
	Confidence      float64 `yaml:"confidence"`
	SubtypeQuestion string  `yaml:"subtypeQuestion"`
}

type categorySpec struct {
	Name           string         `yaml:"name"`
	Keywords       []string       `yaml:"keywords"`
	Patterns       []string       `yaml:"patterns"`
	RequiredFields []string       `yaml:"requiredFields"`
	Subtypes       []subtypeSpec  `yaml:"subtypes"`
	Templates      []templateSpec `yaml:"templates"`
}

type subtypeSpec struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Question string   `yaml:"question"`
}

type templateSpec struct {
	ID          string   `yaml:"id"`
	Subcategory string   `yaml:"subcategory"`
	Triggers    []string `yaml:"triggers"`
}

type fieldSpec struct {
	Name     string `yaml:"name"`
	Pattern  string `yaml:"pattern"`
	Question string `yaml:"question"`
}

// table is the compiled, read-only form of patterns.yaml.
type table struct {
	threshold     float64
	keywordWeight float64
	patternWeight float64
	fallback      fallbackSpec
	funnel        funnelSpec
	categories    []category
	fields        []field
}

type category struct {
	name           models.Category
	keywords       []string
	patterns       []*regexp.Regexp
	requiredFields []string
	subtypes       []subtypeSpec
	templates      []templateSpec
}

type field struct {
	name     string
	re       *regexp.Regexp
	question string
}

func loadTable(data []byte) (*table, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse patterns: %w", err)
	}
	if err := tableSchema.Err(tableSchema.Validate(raw)); err != nil {
		return nil, err
	}

	var pf patternFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("decode patterns: %w", err)
	}
	if pf.KeywordWeight == 0 && pf.PatternWeight == 0 {
		pf.KeywordWeight, pf.PatternWeight = 0.4, 0.6
	}

	t := &table{
		threshold:     pf.Threshold,
		keywordWeight: pf.KeywordWeight,
		patternWeight: pf.PatternWeight,
		fallback:      pf.Fallback,
		funnel:        pf.Funnel,
	}

	seen := map[string]bool{}
	for _, cs := range pf.Categories {
		if seen[cs.Name] {
			return nil, fmt.Errorf("category %s declared twice", cs.Name)
		}
		seen[cs.Name] = true

		c := category{
			name:           models.Category(cs.Name),
			requiredFields: cs.RequiredFields,
			subtypes:       lowerSubtypes(cs.Subtypes),
			templates:      lowerTriggers(cs.Templates),
		}
		for _, kw := range cs.Keywords {
			c.keywords = append(c.keywords, strings.ToLower(kw))
		}
		for _, p := range cs.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("category %s: pattern %q: %w", cs.Name, p, err)
			}
			c.patterns = append(c.patterns, re)
		}
		t.categories = append(t.categories, c)
	}
	if !seen[pf.Fallback.Category] {
		return nil, fmt.Errorf("fallback category %s is not declared", pf.Fallback.Category)
	}

	for _, fs := range pf.Fields {
		re, err := regexp.Compile(fs.Pattern)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fs.Name, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("field %s: pattern needs a capture group", fs.Name)
		}
		t.fields = append(t.fields, field{name: fs.Name, re: re, question: fs.Question})
	}
	return t, nil
}

func lowerSubtypes(in []subtypeSpec) []subtypeSpec {
	out := make([]subtypeSpec, len(in))
	for i, s := range in {
		out[i] = subtypeSpec{Name: s.Name, Question: s.Question}
		for _, kw := range s.Keywords {
			out[i].Keywords = append(out[i].Keywords, strings.ToLower(kw))
		}
	}
	return out
}

func lowerTriggers(in []templateSpec) []templateSpec {
	out := make([]templateSpec, len(in))
	for i, ts := range in {
		out[i] = templateSpec{ID: ts.ID, Subcategory: ts.Subcategory}
		for _, tr := range ts.Triggers {
			out[i].Triggers = append(out[i].Triggers, strings.ToLower(tr))
		}
	}
	return out
}

func (t *table) category(name models.Category) *category {
	for i := range t.categories {
		if t.categories[i].name == name {
			return &t.categories[i]
		}
	}
	return nil
}

// score combines the keyword hit fraction and the regex hit fraction.
// text must already be lower-cased.
func (c *category) score(text string, keywordWeight, patternWeight float64) float64 {
	var kwFrac, reFrac float64
	if len(c.keywords) > 0 {
		hits := 0
		for _, kw := range c.keywords {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		kwFrac = float64(hits) / float64(len(c.keywords))
	}
	if len(c.patterns) > 0 {
		hits := 0
		for _, re := range c.patterns {
			if re.MatchString(text) {
				hits++
			}
		}
		reFrac = float64(hits) / float64(len(c.patterns))
	}
	return keywordWeight*kwFrac + patternWeight*reFrac
}

func (c *category) subtype(text string) *subtypeSpec {
	for i := range c.subtypes {
		for _, kw := range c.subtypes[i].Keywords {
			if strings.Contains(text, kw) {
				return &c.subtypes[i]
			}
		}
	}
	return nil
}
