package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"docgen-workers/internal/common/logger"
	"docgen-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisTemplateStore is a read-through decorator that keeps serialized
// templates in Redis for other processes sharing the same store. Redis
// errors are logged and never fail a lookup.
type RedisTemplateStore struct {
	next   TemplateStore
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger logger.Logger
}

func NewRedisTemplateStore(next TemplateStore, rdb *redis.Client, ttl time.Duration, prefix string, log logger.Logger) *RedisTemplateStore {
	if prefix == "" {
		prefix = "template:"
	}
	return &RedisTemplateStore{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		prefix: prefix,
		logger: log.WithFields(map[string]interface{}{"component": "redis-template-store"}),
	}
}

func (s *RedisTemplateStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisTemplateStore) GetByTemplateID(ctx context.Context, id string) (*models.Template, error) {
	cached, err := s.rdb.Get(ctx, s.key(id)).Result()
	switch {
	case err == nil:
		var t models.Template
		if jsonErr := json.Unmarshal([]byte(cached), &t); jsonErr == nil {
			return &t, nil
		}
		s.logger.Warn("discarding undecodable cached template", map[string]interface{}{"templateId": id})
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("redis get failed", map[string]interface{}{"templateId": id, "error": err})
	}

	t, err := s.next.GetByTemplateID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(t); err == nil {
		if err := s.rdb.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
			s.logger.Warn("redis set failed", map[string]interface{}{"templateId": id, "error": err})
		}
	}
	return t, nil
}

func (s *RedisTemplateStore) List(ctx context.Context, filter models.TemplateFilter) ([]models.Template, error) {
	return s.next.List(ctx, filter)
}

func (s *RedisTemplateStore) Upsert(ctx context.Context, t *models.Template) error {
	if err := s.next.Upsert(ctx, t); err != nil {
		return err
	}
	s.invalidate(ctx, t.ID)
	return nil
}

func (s *RedisTemplateStore) UpdateMetadata(ctx context.Context, id string, u models.MetadataUpdate) error {
	if err := s.next.UpdateMetadata(ctx, id, u); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *RedisTemplateStore) invalidate(ctx context.Context, id string) {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		s.logger.Warn("redis del failed", map[string]interface{}{"templateId": id, "error": err})
	}
}
