package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

var compiledSchema = func() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(registrySchema))
	if err != nil {
		panic(err)
	}
	return s
}()

func LoadRegistry(path string) (*TemplateRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates a registry document.
func Parse(data []byte) (*TemplateRegistry, error) {
	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("registry schema: %s", strings.Join(msgs, "; "))
	}

	var reg TemplateRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate checks the rules the JSON schema cannot express: unique ids and
// required fields being a subset of the declared variables.
func (r *TemplateRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Templates))
	var problems []string
	for _, t := range r.Templates {
		if seen[t.ID] {
			problems = append(problems, fmt.Sprintf("duplicate template id %q", t.ID))
		}
		seen[t.ID] = true

		vars := make(map[string]bool, len(t.Variables))
		for _, v := range t.Variables {
			vars[v] = true
		}
		for _, f := range t.RequiredFields {
			if !vars[f] {
				problems = append(problems, fmt.Sprintf("%s: required field %q is not a variable", t.ID, f))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid registry: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (r *TemplateRegistry) Find(id string) (TemplateEntry, bool) {
	for _, t := range r.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return TemplateEntry{}, false
}

// Upsert replaces the entry with the same id or appends a new one, keeping
// the list sorted by id.
func (r *TemplateRegistry) Upsert(entry TemplateEntry) {
	for i, t := range r.Templates {
		if t.ID == entry.ID {
			r.Templates[i] = entry
			return
		}
	}
	r.Templates = append(r.Templates, entry)
	sort.Slice(r.Templates, func(i, j int) bool { return r.Templates[i].ID < r.Templates[j].ID })
}

func (r *TemplateRegistry) Save(path string) error {
	r.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
