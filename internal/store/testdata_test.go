package store

import "docgen-workers/internal/models"

func sampleTemplate(id string) *models.Template {
	return &models.Template{
		ID:             id,
		Name:           "Viewing confirmation",
		Category:       models.CategoryViewing,
		Subcategory:    "confirmation",
		Content:        "Hi {{buyer_name}}, see you at {{property}}.",
		Variables:      []string{"buyer_name", "property"},
		RequiredFields: []string{"buyer_name", "property"},
		Version:        "1",
		Metadata:       models.TemplateMetadata{Tags: []string{"viewing"}},
	}
}
