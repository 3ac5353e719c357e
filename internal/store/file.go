package store

import (
	"context"
	"fmt"
	"strconv"

	"docgen-workers/internal/models"
	"docgen-workers/pkg/registry"
)

// FileSource serves templates from the registry JSON file loaded at start.
type FileSource struct {
	templates map[string]*models.Template
}

func NewFileSource(path string) (*FileSource, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load template registry: %w", err)
	}
	return NewFileSourceFromRegistry(reg), nil
}

func NewFileSourceFromRegistry(reg *registry.TemplateRegistry) *FileSource {
	fs := &FileSource{templates: make(map[string]*models.Template, len(reg.Templates))}
	for _, entry := range reg.Templates {
		fs.templates[entry.ID] = FromRegistryEntry(entry)
	}
	return fs
}

func (f *FileSource) Get(_ context.Context, id string) (*models.Template, error) {
	t, ok := f.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

// All returns every registry template, used to seed stores.
func (f *FileSource) All() []*models.Template {
	out := make([]*models.Template, 0, len(f.templates))
	for _, t := range f.templates {
		out = append(out, t.Clone())
	}
	return out
}

func FromRegistryEntry(e registry.TemplateEntry) *models.Template {
	return &models.Template{
		ID:              e.ID,
		Name:            e.Name,
		Category:        models.Category(e.Category),
		Subcategory:     e.Subcategory,
		Content:         e.Content,
		Variables:       e.Variables,
		RequiredFields:  e.RequiredFields,
		OptionalFields:  e.OptionalFields,
		Instructions:    e.Instructions,
		EstimatedTokens: e.EstimatedTokens,
		Version:         strconv.Itoa(e.Version),
		Metadata: models.TemplateMetadata{
			Tags: e.Tags,
		},
	}
}
