package store

import (
	"time"

	"docgen-workers/internal/models"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ApplyUpdate folds one generation outcome into rolling statistics.
func ApplyUpdate(meta models.TemplateMetadata, u models.MetadataUpdate) models.TemplateMetadata {
	n := float64(meta.UsageCount)
	success := 0.0
	if u.Success {
		success = 1
	}
	meta.AverageResponseTime = (meta.AverageResponseTime*n + float64(u.DurationMs)) / (n + 1)
	meta.SuccessRate = (meta.SuccessRate*n + success) / (n + 1)
	meta.UsageCount++
	meta.LastUsed = u.UsedAt
	return meta
}

// PatchMetadata applies u to a stored metadata JSON document in place. Keys
// it does not own, such as tags or anything added by other writers, are left
// untouched.
func PatchMetadata(raw []byte, u models.MetadataUpdate) ([]byte, error) {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		raw = []byte(`{}`)
	}
	doc := gjson.ParseBytes(raw)
	current := models.TemplateMetadata{
		UsageCount:          doc.Get("usageCount").Int(),
		AverageResponseTime: doc.Get("averageResponseTime").Float(),
		SuccessRate:         doc.Get("successRate").Float(),
	}
	next := ApplyUpdate(current, u)

	out, err := sjson.SetBytes(raw, "usageCount", next.UsageCount)
	if err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "averageResponseTime", next.AverageResponseTime); err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "successRate", next.SuccessRate); err != nil {
		return nil, err
	}
	return sjson.SetBytes(out, "lastUsed", next.LastUsed.UTC().Format(time.RFC3339Nano))
}
