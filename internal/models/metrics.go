// internal/models/metrics.go
package models

import "time"

// Operation names recorded by the orchestrator. OperationGenerate is the
// aggregate record written once per request.
const (
	OperationClassify = "classify"
	OperationSelect   = "select_instructions"
	OperationResolve  = "resolve_templates"
	OperationComplete = "completion"
	OperationGenerate = "generate"
)

type PerformanceMetric struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Service    string    `json:"service"`
	Operation  string    `json:"operation"`
	DurationMs int64     `json:"durationMs"`
	Success    bool      `json:"success"`
	Tokens     *int      `json:"tokens,omitempty"`
	TemplateID string    `json:"templateId,omitempty"`
	Category   string    `json:"category,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	Error      string    `json:"error,omitempty"`
}

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type RealtimeSnapshot struct {
	RequestsPerMinute   float64 `json:"requestsPerMinute"`
	AverageResponseTime float64 `json:"averageResponseTime"`
	SuccessRate         float64 `json:"successRate"`
	ActiveTemplates     int     `json:"activeTemplates"`
	BufferedMetrics     int     `json:"bufferedMetrics"`
}

type AnalyticsDashboard struct {
	Range               TimeRange        `json:"range"`
	TotalRequests       int              `json:"totalRequests"`
	SuccessfulRequests  int              `json:"successfulRequests"`
	FailedRequests      int              `json:"failedRequests"`
	SuccessRate         float64          `json:"successRate"`
	AverageResponseTime float64          `json:"averageResponseTime"`
	P95ResponseTime     int64            `json:"p95ResponseTime"`
	P99ResponseTime     int64            `json:"p99ResponseTime"`
	TotalTokens         int64            `json:"totalTokens"`
	AverageTokens       float64          `json:"averageTokens"`
	ByTemplate          []TemplateStats  `json:"byTemplate"`
	ByCategory          []CategoryStats  `json:"byCategory"`
	ByOperation         []OperationStats `json:"byOperation"`
	Trend               []TrendBucket    `json:"trend"`
	TopErrors           []ErrorCount     `json:"topErrors"`
	BufferedIncluded    int              `json:"bufferedIncluded"`
}

type TemplateStats struct {
	TemplateID          string  `json:"templateId"`
	Requests            int     `json:"requests"`
	SuccessRate         float64 `json:"successRate"`
	AverageResponseTime float64 `json:"averageResponseTime"`
	TotalTokens         int64   `json:"totalTokens"`
}

type CategoryStats struct {
	Category            string  `json:"category"`
	Requests            int     `json:"requests"`
	SuccessRate         float64 `json:"successRate"`
	AverageResponseTime float64 `json:"averageResponseTime"`
	AverageConfidence   float64 `json:"averageConfidence"`
}

type OperationStats struct {
	Operation           string  `json:"operation"`
	Count               int     `json:"count"`
	SuccessRate         float64 `json:"successRate"`
	AverageResponseTime float64 `json:"averageResponseTime"`
	P95ResponseTime     int64   `json:"p95ResponseTime"`
}

type TrendBucket struct {
	Start               time.Time `json:"start"`
	Requests            int       `json:"requests"`
	SuccessRate         float64   `json:"successRate"`
	AverageResponseTime float64   `json:"averageResponseTime"`
}

type ErrorCount struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

type Insights struct {
	GeneratedAt     time.Time `json:"generatedAt"`
	Window          TimeRange `json:"window"`
	Recommendations []string  `json:"recommendations"`
	Warnings        []string  `json:"warnings"`
	Optimizations   []string  `json:"optimizations"`
}
