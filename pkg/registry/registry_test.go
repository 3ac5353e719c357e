package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "version": "1",
  "templates": [
    {
      "id": "viewing_confirmation",
      "name": "Viewing confirmation",
      "category": "viewing",
      "content": "Dear {{buyer_name}}, your viewing of {{property}} is on {{viewing_datetime}}.",
      "variables": ["buyer_name", "property", "viewing_datetime"],
      "requiredFields": ["buyer_name", "property"],
      "version": 1
    }
  ]
}`

func TestParse_Valid(t *testing.T) {
	reg, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, reg.Templates, 1)

	entry, ok := reg.Find("viewing_confirmation")
	require.True(t, ok)
	assert.Equal(t, "viewing", entry.Category)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"unknown category", `{"version":"1","templates":[{"id":"x","name":"x","category":"fax","content":"c","variables":[],"requiredFields":[]}]}`, "registry schema"},
		{"required not a variable", `{"version":"1","templates":[{"id":"x","name":"x","category":"email","content":"c","variables":["a"],"requiredFields":["b"]}]}`, "not a variable"},
		{"duplicate ids", `{"version":"1","templates":[{"id":"x","name":"x","category":"email","content":"c","variables":[],"requiredFields":[]},{"id":"x","name":"y","category":"email","content":"c","variables":[],"requiredFields":[]}]}`, "duplicate"},
		{"not json", `{`, "parse registry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestUpsertAndSave(t *testing.T) {
	reg, err := Parse([]byte(sample))
	require.NoError(t, err)

	reg.Upsert(TemplateEntry{ID: "email_follow_up", Name: "Follow up", Category: "email", Content: "Hi", Variables: []string{}, RequiredFields: []string{}, Version: 1})
	reg.Upsert(TemplateEntry{ID: "viewing_confirmation", Name: "Renamed", Category: "viewing", Content: "c", Variables: []string{}, RequiredFields: []string{}, Version: 2})
	require.Len(t, reg.Templates, 2)
	assert.Equal(t, "email_follow_up", reg.Templates[0].ID)

	path := filepath.Join(t.TempDir(), "templates.json")
	require.NoError(t, reg.Save(path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	entry, _ := loaded.Find("viewing_confirmation")
	assert.Equal(t, "Renamed", entry.Name)
	assert.NotEmpty(t, loaded.LastUpdated)
}

func TestLoadRegistry_ShippedCatalogue(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join("..", "..", "configs", "templates.json"))
	require.NoError(t, err)
	assert.Len(t, reg.Templates, 12)
	_, ok := reg.Find("email_follow_up")
	assert.True(t, ok)
}
