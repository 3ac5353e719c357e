package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"docgen-workers/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const defaultSearchSize = 10

// ElasticsearchIndex searches and indexes templates in a full-text index.
type ElasticsearchIndex struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchIndex(client *elasticsearch.Client, index string) *ElasticsearchIndex {
	return &ElasticsearchIndex{client: client, index: index}
}

func buildSearchQuery(filter models.TemplateFilter) map[string]interface{} {
	var must, filters []interface{}
	if filter.Text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  filter.Text,
				"fields": []string{"name^3", "metadata.tags^2", "content", "instructions"},
				"type":   "best_fields",
			},
		})
	} else {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}
	if filter.Category != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"category": string(filter.Category)},
		})
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must, "filter": filters},
		},
	}
	if filter.OrderByUsage {
		query["sort"] = []interface{}{
			map[string]interface{}{"metadata.usageCount": map[string]interface{}{"order": "desc", "unmapped_type": "long"}},
			"_score",
		}
	}
	return query
}

func (e *ElasticsearchIndex) Search(ctx context.Context, filter models.TemplateFilter) ([]models.Template, error) {
	body, err := json.Marshal(buildSearchQuery(filter))
	if err != nil {
		return nil, err
	}
	size := filter.Limit
	if size <= 0 {
		size = defaultSearchSize
	}

	req := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search templates: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source models.Template `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]models.Template, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func (e *ElasticsearchIndex) Index(ctx context.Context, t *models.Template) error {
	body, err := json.Marshal(t)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: t.ID,
		Body:       strings.NewReader(string(body)),
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index template %s: %s", t.ID, res.String())
	}
	return nil
}
