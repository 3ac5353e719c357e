package database

import (
	"context"
	"fmt"

	"docgen-workers/internal/common/config"

	"github.com/supabase-community/supabase-go"
)

// SupabaseClient wraps the PostgREST-backed Supabase client.
type SupabaseClient struct {
	Client *supabase.Client
}

func NewSupabase(cfg config.SupabaseConfig) (*SupabaseClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	client, err := supabase.NewClient(cfg.URL, cfg.Key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &SupabaseClient{Client: client}, nil
}

// Ping issues a one-row read against the templates table.
func (c *SupabaseClient) Ping(_ context.Context) error {
	var rows []map[string]interface{}
	_, err := c.Client.From("templates").
		Select("template_id", "", false).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("supabase ping failed: %w", err)
	}
	return nil
}
