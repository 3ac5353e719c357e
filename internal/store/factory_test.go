package store

import (
	"context"
	"path/filepath"
	"testing"

	"docgen-workers/internal/common/config"
	"docgen-workers/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Store.Driver = "file"
	cfg.Template.RegistryPath = filepath.Join("..", "..", "configs", "templates.json")
	return cfg
}

func TestOpen_FileDriver(t *testing.T) {
	s, err := Open(context.Background(), fileConfig(), logger.NewTestLogger(t))
	require.NoError(t, err)
	defer s.Close()

	tpl, err := s.Templates.GetByTemplateID(context.Background(), "email_follow_up")
	require.NoError(t, err)
	assert.Equal(t, "email_follow_up", tpl.ID)
	assert.IsType(t, ListSearcher{}, s.Searcher)
	assert.Nil(t, s.Indexer)
}

func TestOpen_WithRedisReadThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := fileConfig()
	cfg.Store.RedisCacheTTL = 60000
	cfg.Database.Redis.Address = mr.Addr()

	s, err := Open(context.Background(), cfg, logger.NewTestLogger(t))
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &RedisTemplateStore{}, s.Templates)
	_, err = s.Templates.GetByTemplateID(context.Background(), "email_follow_up")
	require.NoError(t, err)
	assert.True(t, mr.Exists("template:email_follow_up"))
}

func TestOpen_UnknownDriver(t *testing.T) {
	cfg := fileConfig()
	cfg.Store.Driver = "mongo"
	_, err := Open(context.Background(), cfg, logger.NewNoOpLogger())
	assert.Error(t, err)
}
