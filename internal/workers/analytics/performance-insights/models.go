package performanceinsights

// Input optionally narrows the summary to the last WindowHours hours.
type Input struct {
	WindowHours int `json:"windowHours,omitempty"`
}

type Output struct {
	Recommendations []string `json:"recommendations"`
	Warnings        []string `json:"warnings"`
	Optimizations   []string `json:"optimizations"`

	TotalRequests       int     `json:"totalRequests"`
	SuccessRate         float64 `json:"successRate"`
	AverageResponseTime float64 `json:"averageResponseTime"`
	P95ResponseTime     int64   `json:"p95ResponseTime"`
	HasWarnings         bool    `json:"hasWarnings"`
}
