package store

import (
	"testing"
	"time"

	"docgen-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestApplyUpdate_RollingAverages(t *testing.T) {
	used := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	meta := models.TemplateMetadata{UsageCount: 3, AverageResponseTime: 1000, SuccessRate: 1}

	next := ApplyUpdate(meta, models.MetadataUpdate{DurationMs: 2000, Success: false, UsedAt: used})

	assert.Equal(t, int64(4), next.UsageCount)
	assert.InDelta(t, 1250, next.AverageResponseTime, 0.001)
	assert.InDelta(t, 0.75, next.SuccessRate, 0.001)
	assert.Equal(t, used, next.LastUsed)
}

func TestApplyUpdate_FirstUse(t *testing.T) {
	next := ApplyUpdate(models.TemplateMetadata{}, models.MetadataUpdate{DurationMs: 800, Success: true})
	assert.Equal(t, int64(1), next.UsageCount)
	assert.Equal(t, 800.0, next.AverageResponseTime)
	assert.Equal(t, 1.0, next.SuccessRate)
}

func TestPatchMetadata_PreservesUnknownKeys(t *testing.T) {
	raw := []byte(`{"usageCount":1,"averageResponseTime":100,"successRate":1,"tags":["seller"],"owner":"ops"}`)
	used := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	out, err := PatchMetadata(raw, models.MetadataUpdate{DurationMs: 300, Success: true, UsedAt: used})
	require.NoError(t, err)

	doc := gjson.ParseBytes(out)
	assert.Equal(t, int64(2), doc.Get("usageCount").Int())
	assert.InDelta(t, 200, doc.Get("averageResponseTime").Float(), 0.001)
	assert.Equal(t, 1.0, doc.Get("successRate").Float())
	assert.Equal(t, "seller", doc.Get("tags.0").String())
	assert.Equal(t, "ops", doc.Get("owner").String())
	assert.Equal(t, "2026-05-01T10:00:00Z", doc.Get("lastUsed").String())
}

func TestPatchMetadata_EmptyOrInvalidInput(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte("not json")} {
		out, err := PatchMetadata(raw, models.MetadataUpdate{DurationMs: 50, Success: false})
		require.NoError(t, err)
		doc := gjson.ParseBytes(out)
		assert.Equal(t, int64(1), doc.Get("usageCount").Int())
		assert.Equal(t, 0.0, doc.Get("successRate").Float())
	}
}
