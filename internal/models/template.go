// internal/models/template.go
package models

import (
	"fmt"
	"strings"
	"time"
)

type Category string

const (
	CategoryRegistration Category = "registration"
	CategoryEmail        Category = "email"
	CategoryViewing      Category = "viewing"
	CategoryAgreement    Category = "agreement"
	CategorySocial       Category = "social"
)

// Categories lists every category in declaration order. Classification ties
// resolve to the earliest entry.
var Categories = []Category{
	CategoryRegistration,
	CategoryEmail,
	CategoryViewing,
	CategoryAgreement,
	CategorySocial,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Template struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Category        Category         `json:"category"`
	Subcategory     string           `json:"subcategory"`
	Content         string           `json:"content"`
	Variables       []string         `json:"variables"`
	RequiredFields  []string         `json:"requiredFields"`
	OptionalFields  []string         `json:"optionalFields"`
	Instructions    string           `json:"instructions"`
	EstimatedTokens int              `json:"estimatedTokens"`
	Version         string           `json:"version"`
	Metadata        TemplateMetadata `json:"metadata"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

type TemplateMetadata struct {
	UsageCount          int64     `json:"usageCount"`
	AverageResponseTime float64   `json:"averageResponseTime"`
	SuccessRate         float64   `json:"successRate"`
	LastUsed            time.Time `json:"lastUsed,omitempty"`
	Tags                []string  `json:"tags,omitempty"`
}

// CacheKey builds the composite lookup key used by the template cache.
func CacheKey(category Category, subcategory, templateID string) string {
	return fmt.Sprintf("%s/%s/%s", category, subcategory, templateID)
}

func (t *Template) CacheKey() string {
	return CacheKey(t.Category, t.Subcategory, t.ID)
}

// Validate checks identity, category and that every required or optional
// field is a declared variable.
func (t *Template) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("template id is required")
	}
	if !t.Category.Valid() {
		return fmt.Errorf("template %s: unknown category %q", t.ID, t.Category)
	}
	if t.EstimatedTokens < 0 {
		return fmt.Errorf("template %s: estimatedTokens must be >= 0", t.ID)
	}

	declared := make(map[string]struct{}, len(t.Variables))
	for _, v := range t.Variables {
		declared[v] = struct{}{}
	}
	for _, group := range [][]string{t.RequiredFields, t.OptionalFields} {
		for _, f := range group {
			if _, ok := declared[f]; !ok {
				return fmt.Errorf("template %s: field %q is not a declared variable", t.ID, f)
			}
		}
	}
	return nil
}

// Clone returns a deep copy so callers never share slices with the cache.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	out := *t
	out.Variables = cloneStrings(t.Variables)
	out.RequiredFields = cloneStrings(t.RequiredFields)
	out.OptionalFields = cloneStrings(t.OptionalFields)
	out.Metadata.Tags = cloneStrings(t.Metadata.Tags)
	return &out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// MetadataUpdate is one generation outcome folded into a template's rolling
// usage statistics.
type MetadataUpdate struct {
	DurationMs int64     `json:"durationMs"`
	Success    bool      `json:"success"`
	UsedAt     time.Time `json:"usedAt"`
}

type CacheEntry struct {
	Template     *Template `json:"template"`
	CachedAt     time.Time `json:"cachedAt"`
	AccessCount  int64     `json:"accessCount"`
	LastAccessed time.Time `json:"lastAccessed"`
}

type CacheMetrics struct {
	Size          int     `json:"size"`
	Capacity      int     `json:"capacity"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	HitRate       float64 `json:"hitRate"`
	Expirations   int64   `json:"expirations"`
	Evictions     int64   `json:"evictions"`
	StoreLoads    int64   `json:"storeLoads"`
	FallbackLoads int64   `json:"fallbackLoads"`
	LoadErrors    int64   `json:"loadErrors"`
}

type TemplateFilter struct {
	Category     Category `json:"category,omitempty"`
	Text         string   `json:"text,omitempty"`
	OrderByUsage bool     `json:"orderByUsage,omitempty"`
	Limit        int      `json:"limit,omitempty"`
}
