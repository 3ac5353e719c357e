package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	apperrors "docgen-workers/internal/common/errors"
	"docgen-workers/internal/models"
)

const (
	hourlyTrendLimit = 48 * time.Hour
	topErrorCount    = 5
)

// Dashboard aggregates stored and still-buffered metrics for the range.
// Ranges longer than the configured maximum keep their end and move the
// start forward.
func (c *Collector) Dashboard(ctx context.Context, tr models.TimeRange) (*models.AnalyticsDashboard, error) {
	if tr.From.After(tr.To) {
		return nil, apperrors.NewInvalidTimeRangeError(
			fmt.Sprintf("from %s is after to %s", tr.From.Format(time.RFC3339), tr.To.Format(time.RFC3339)))
	}
	if tr.To.Sub(tr.From) > c.cfg.MaxWindow {
		tr.From = tr.To.Add(-c.cfg.MaxWindow)
	}

	history, err := c.store.Range(ctx, tr.From, tr.To)
	if err != nil {
		return nil, apperrors.NewAnalyticsQueryFailedError(err)
	}

	seen := make(map[string]struct{}, len(history))
	all := make([]models.PerformanceMetric, 0, len(history))
	for _, m := range history {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		all = append(all, m)
	}
	included := 0
	for _, m := range c.bufferedIn(tr.From, tr.To) {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		all = append(all, m)
		included++
	}

	d := summarize(tr, all)
	d.BufferedIncluded = included
	return d, nil
}

func summarize(tr models.TimeRange, all []models.PerformanceMetric) *models.AnalyticsDashboard {
	d := &models.AnalyticsDashboard{
		Range:       tr,
		ByTemplate:  []models.TemplateStats{},
		ByCategory:  []models.CategoryStats{},
		ByOperation: []models.OperationStats{},
		Trend:       []models.TrendBucket{},
		TopErrors:   []models.ErrorCount{},
	}

	var requests []models.PerformanceMetric
	for _, m := range all {
		if m.Operation == models.OperationGenerate {
			requests = append(requests, m)
		}
	}

	var totalDuration int64
	var withTokens int
	durations := make([]int64, 0, len(requests))
	for _, m := range requests {
		d.TotalRequests++
		if m.Success {
			d.SuccessfulRequests++
		}
		totalDuration += m.DurationMs
		durations = append(durations, m.DurationMs)
		if m.Tokens != nil {
			d.TotalTokens += int64(*m.Tokens)
			withTokens++
		}
	}
	d.FailedRequests = d.TotalRequests - d.SuccessfulRequests
	if d.TotalRequests > 0 {
		d.SuccessRate = float64(d.SuccessfulRequests) / float64(d.TotalRequests)
		d.AverageResponseTime = float64(totalDuration) / float64(d.TotalRequests)
	}
	if withTokens > 0 {
		d.AverageTokens = float64(d.TotalTokens) / float64(withTokens)
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	d.P95ResponseTime = percentile(durations, 95)
	d.P99ResponseTime = percentile(durations, 99)

	d.ByTemplate = byTemplate(requests)
	d.ByCategory = byCategory(requests)
	d.ByOperation = byOperation(all)
	d.Trend = trend(tr, requests)
	d.TopErrors = topErrors(requests)
	return d
}

// percentile is the nearest-rank percentile of an ascending slice.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

type tally struct {
	count      int
	ok         int
	duration   int64
	tokens     int64
	confidence float64
	confCount  int
	durations  []int64
}

func (t *tally) add(m models.PerformanceMetric) {
	t.count++
	if m.Success {
		t.ok++
	}
	t.duration += m.DurationMs
	t.durations = append(t.durations, m.DurationMs)
	if m.Tokens != nil {
		t.tokens += int64(*m.Tokens)
	}
	if m.Confidence != nil {
		t.confidence += *m.Confidence
		t.confCount++
	}
}

func (t *tally) successRate() float64 { return float64(t.ok) / float64(t.count) }
func (t *tally) avg() float64         { return float64(t.duration) / float64(t.count) }

func group(ms []models.PerformanceMetric, key func(models.PerformanceMetric) string) (map[string]*tally, []string) {
	groups := map[string]*tally{}
	var keys []string
	for _, m := range ms {
		k := key(m)
		if k == "" {
			continue
		}
		g, ok := groups[k]
		if !ok {
			g = &tally{}
			groups[k] = g
			keys = append(keys, k)
		}
		g.add(m)
	}
	return groups, keys
}

func byTemplate(requests []models.PerformanceMetric) []models.TemplateStats {
	groups, keys := group(requests, func(m models.PerformanceMetric) string { return m.TemplateID })
	out := make([]models.TemplateStats, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		out = append(out, models.TemplateStats{
			TemplateID:          k,
			Requests:            g.count,
			SuccessRate:         g.successRate(),
			AverageResponseTime: g.avg(),
			TotalTokens:         g.tokens,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Requests != out[j].Requests {
			return out[i].Requests > out[j].Requests
		}
		return out[i].TemplateID < out[j].TemplateID
	})
	return out
}

func byCategory(requests []models.PerformanceMetric) []models.CategoryStats {
	groups, keys := group(requests, func(m models.PerformanceMetric) string { return m.Category })
	out := make([]models.CategoryStats, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		cs := models.CategoryStats{
			Category:            k,
			Requests:            g.count,
			SuccessRate:         g.successRate(),
			AverageResponseTime: g.avg(),
		}
		if g.confCount > 0 {
			cs.AverageConfidence = g.confidence / float64(g.confCount)
		}
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Requests != out[j].Requests {
			return out[i].Requests > out[j].Requests
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func byOperation(all []models.PerformanceMetric) []models.OperationStats {
	groups, keys := group(all, func(m models.PerformanceMetric) string { return m.Operation })
	sort.Strings(keys)
	out := make([]models.OperationStats, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		sort.Slice(g.durations, func(i, j int) bool { return g.durations[i] < g.durations[j] })
		out = append(out, models.OperationStats{
			Operation:           k,
			Count:               g.count,
			SuccessRate:         g.successRate(),
			AverageResponseTime: g.avg(),
			P95ResponseTime:     percentile(g.durations, 95),
		})
	}
	return out
}

// trend buckets requests hourly for ranges up to 48h and daily beyond.
func trend(tr models.TimeRange, requests []models.PerformanceMetric) []models.TrendBucket {
	step := time.Hour
	if tr.To.Sub(tr.From) > hourlyTrendLimit {
		step = 24 * time.Hour
	}
	start := tr.From.UTC().Truncate(step)

	var buckets []*tally
	var starts []time.Time
	for t := start; !t.After(tr.To); t = t.Add(step) {
		buckets = append(buckets, &tally{})
		starts = append(starts, t)
	}
	for _, m := range requests {
		i := int(m.Timestamp.UTC().Sub(start) / step)
		if i >= 0 && i < len(buckets) {
			buckets[i].add(m)
		}
	}

	out := make([]models.TrendBucket, len(buckets))
	for i, b := range buckets {
		out[i] = models.TrendBucket{Start: starts[i], Requests: b.count}
		if b.count > 0 {
			out[i].SuccessRate = b.successRate()
			out[i].AverageResponseTime = b.avg()
		}
	}
	return out
}

func topErrors(requests []models.PerformanceMetric) []models.ErrorCount {
	counts := map[string]int{}
	for _, m := range requests {
		if !m.Success && m.Error != "" {
			counts[m.Error]++
		}
	}
	out := make([]models.ErrorCount, 0, len(counts))
	for msg, n := range counts {
		out = append(out, models.ErrorCount{Message: msg, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Message < out[j].Message
	})
	if len(out) > topErrorCount {
		out = out[:topErrorCount]
	}
	return out
}
