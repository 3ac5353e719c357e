// Package classifier maps a free-text agent request to a document category,
// a ranked list of candidate templates and the fields still missing.
// Classification is rule based and performs no I/O.
package classifier

import (
	"math"
	"sort"
	"strings"

	"docgen-workers/internal/models"
)

type Classifier struct {
	table *table
}

// New returns a classifier over the embedded pattern table.
func New() (*Classifier, error) {
	return NewFromYAML(defaultPatterns)
}

// MustNew is New for process start-up.
func MustNew() *Classifier {
	c, err := New()
	if err != nil {
		panic(err)
	}
	return c
}

func NewFromYAML(data []byte) (*Classifier, error) {
	t, err := loadTable(data)
	if err != nil {
		return nil, err
	}
	return &Classifier{table: t}, nil
}

// Classify scores every category and returns the best one. Ties keep the
// category declared first.
func (c *Classifier) Classify(message string) models.IntentClassification {
	text := strings.ToLower(strings.TrimSpace(message))
	if text == "" {
		return c.fallback(message)
	}

	var best *category
	bestScore := 0.0
	for i := range c.table.categories {
		cat := &c.table.categories[i]
		if s := cat.score(text, c.table.keywordWeight, c.table.patternWeight); s > bestScore {
			best, bestScore = cat, s
		}
	}
	if best == nil || bestScore < c.table.threshold {
		return c.fallback(message)
	}

	fields := c.ExtractFields(message)
	missing := missingFields(best.requiredFields, fields)
	sub := best.subtype(text)

	result := models.IntentClassification{
		Category:        best.name,
		Confidence:      math.Min(1, bestScore),
		RequiredFields:  append([]string(nil), best.requiredFields...),
		ExtractedFields: fields,
	}
	subName := ""
	if sub != nil {
		subName = sub.Name
		result.Subcategory = sub.Name
	}
	result.Candidates = rank(best, text, subName)
	result.LikelyTemplates = candidateIDs(result.Candidates)

	if string(best.name) == c.table.funnel.Category && (sub == nil || len(missing) > 0) {
		result.Confidence = c.table.funnel.Confidence
		result.NeedsClarification = true
		if sub == nil {
			result.SuggestedQuestions = []string{c.table.funnel.SubtypeQuestion}
		} else {
			result.SuggestedQuestions = []string{sub.Question}
		}
		return result
	}

	result.SuggestedQuestions = c.questions(missing)
	return result
}

// ExtractFields runs every field extractor against the original message.
func (c *Classifier) ExtractFields(message string) map[string]string {
	out := make(map[string]string)
	for _, f := range c.table.fields {
		m := f.re.FindStringSubmatch(message)
		if len(m) < 2 {
			continue
		}
		if v := strings.Trim(strings.TrimSpace(m[1]), ".!?"); v != "" {
			out[f.name] = v
		}
	}
	return out
}

// Question returns the clarifying question declared for field.
func (c *Classifier) Question(field string) (string, bool) {
	for _, f := range c.table.fields {
		if f.name == field {
			return f.question, true
		}
	}
	return "", false
}

func (c *Classifier) fallback(message string) models.IntentClassification {
	fb := c.table.fallback
	result := models.IntentClassification{
		Category:           models.Category(fb.Category),
		Confidence:         fb.Confidence,
		LikelyTemplates:    []string{fb.Template},
		SuggestedQuestions: []string{fb.Question},
		Fallback:           true,
		ExtractedFields:    c.ExtractFields(message),
	}
	sub := ""
	if cat := c.table.category(result.Category); cat != nil {
		result.RequiredFields = append([]string(nil), cat.requiredFields...)
		for _, ts := range cat.templates {
			if ts.ID == fb.Template {
				sub = ts.Subcategory
				break
			}
		}
	}
	result.Candidates = []models.Candidate{{TemplateID: fb.Template, Subcategory: sub}}
	return result
}

func (c *Classifier) questions(missing []string) []string {
	out := make([]string, 0, len(missing))
	for _, name := range missing {
		if q, ok := c.Question(name); ok {
			out = append(out, q)
		}
	}
	return out
}

// rank orders the category's templates by trigger hits, keeping declaration
// order for equal counts. A detected sub-type restricts the candidates when
// it names at least one template.
func rank(cat *category, text, subtype string) []models.Candidate {
	var out []models.Candidate
	for _, ts := range cat.templates {
		if subtype != "" && ts.Subcategory != subtype {
			continue
		}
		out = append(out, models.Candidate{
			TemplateID:  ts.ID,
			Subcategory: ts.Subcategory,
			Matches:     triggerHits(ts.Triggers, text),
		})
	}
	if len(out) == 0 && subtype != "" {
		return rank(cat, text, "")
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Matches > out[j].Matches })
	return out
}

func triggerHits(triggers []string, text string) int {
	n := 0
	for _, tr := range triggers {
		if strings.Contains(text, tr) {
			n++
		}
	}
	return n
}

func candidateIDs(cands []models.Candidate) []string {
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.TemplateID
	}
	return ids
}

func missingFields(required []string, fields map[string]string) []string {
	var missing []string
	for _, name := range required {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
