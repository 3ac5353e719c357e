package analytics

import (
	"context"
	"fmt"

	"docgen-workers/internal/models"
)

const (
	slowResponseMs      = 5000
	minSuccessRate      = 0.95
	maxErrorRate        = 0.05
	minCacheHitRate     = 0.8
	minCacheLookups     = 20
	maxAverageTokens    = 1200
	templateMinRequests = 5
	templateMinSuccess  = 0.9
)

// Insights applies the rule table to the metrics of the insights window.
func (c *Collector) Insights(ctx context.Context) (*models.Insights, error) {
	now := c.now()
	window := models.TimeRange{From: now.Add(-c.cfg.InsightsWindow), To: now}

	d, err := c.Dashboard(ctx, window)
	if err != nil {
		return nil, err
	}

	in := &models.Insights{
		GeneratedAt:     now,
		Window:          d.Range,
		Recommendations: []string{},
		Warnings:        []string{},
		Optimizations:   []string{},
	}
	if d.TotalRequests == 0 {
		in.Recommendations = append(in.Recommendations,
			"Not enough data yet: collect more generation requests before drawing conclusions.")
		return in, nil
	}

	if d.AverageResponseTime > slowResponseMs {
		in.Warnings = append(in.Warnings,
			fmt.Sprintf("Average response time is %.0fms, above the %dms target.", d.AverageResponseTime, slowResponseMs))
		in.Recommendations = append(in.Recommendations,
			"Pre-load frequently used templates and instruction bundles at start-up.")
	}
	if d.SuccessRate < minSuccessRate {
		in.Warnings = append(in.Warnings,
			fmt.Sprintf("Success rate is %.1f%%, below %.0f%%.", d.SuccessRate*100, minSuccessRate*100))
		in.Recommendations = append(in.Recommendations,
			"Review the error logs for the most frequent generation failures.")
	}
	if errorRate := float64(d.FailedRequests) / float64(d.TotalRequests); errorRate > maxErrorRate {
		in.Warnings = append(in.Warnings,
			fmt.Sprintf("Error rate is %.1f%% over the last window.", errorRate*100))
	}

	if c.cache != nil {
		cm := c.cache.Metrics()
		if cm.Hits+cm.Misses >= minCacheLookups && cm.HitRate < minCacheHitRate {
			in.Optimizations = append(in.Optimizations,
				fmt.Sprintf("Template cache hit rate is %.0f%%: raise the capacity or preload popular templates.", cm.HitRate*100))
		}
	}
	if d.AverageTokens > maxAverageTokens {
		in.Optimizations = append(in.Optimizations,
			fmt.Sprintf("Average of %.0f tokens per request: trim the micro-instructions.", d.AverageTokens))
	}
	for _, ts := range d.ByTemplate {
		if ts.Requests >= templateMinRequests && ts.SuccessRate < templateMinSuccess {
			in.Optimizations = append(in.Optimizations,
				fmt.Sprintf("Template %s succeeds in %.0f%% of %d requests: review its content and required fields.",
					ts.TemplateID, ts.SuccessRate*100, ts.Requests))
		}
	}
	return in, nil
}
