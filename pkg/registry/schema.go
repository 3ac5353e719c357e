package registry

// TemplateRegistry is the on-disk catalogue of document templates. It seeds
// the template store and serves as the secondary source when the store is
// unreachable.
type TemplateRegistry struct {
	Version     string          `json:"version"`
	LastUpdated string          `json:"lastUpdated"`
	Templates   []TemplateEntry `json:"templates"`
}

type TemplateEntry struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Category        string   `json:"category"`
	Subcategory     string   `json:"subcategory,omitempty"`
	Content         string   `json:"content"`
	Variables       []string `json:"variables"`
	RequiredFields  []string `json:"requiredFields"`
	OptionalFields  []string `json:"optionalFields,omitempty"`
	Instructions    string   `json:"instructions,omitempty"`
	EstimatedTokens int      `json:"estimatedTokens,omitempty"`
	Version         int      `json:"version"`
	Tags            []string `json:"tags,omitempty"`
}

const registrySchema = `{
	"type": "object",
	"required": ["version", "templates"],
	"properties": {
		"version": {"type": "string", "minLength": 1},
		"lastUpdated": {"type": "string"},
		"templates": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "name", "category", "content", "variables", "requiredFields"],
				"properties": {
					"id": {"type": "string", "pattern": "^[a-z0-9_]+$"},
					"name": {"type": "string", "minLength": 1},
					"category": {"enum": ["registration", "email", "viewing", "agreement", "social"]},
					"subcategory": {"type": "string"},
					"content": {"type": "string", "minLength": 1},
					"variables": {"type": "array", "items": {"type": "string"}},
					"requiredFields": {"type": "array", "items": {"type": "string"}},
					"optionalFields": {"type": "array", "items": {"type": "string"}},
					"estimatedTokens": {"type": "integer", "minimum": 0},
					"version": {"type": "integer", "minimum": 0}
				}
			}
		}
	}
}`
