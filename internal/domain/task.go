package domain

import "time"

// TaskStatus outcome class of a scheduled job invocation.
type TaskStatus string

const (
	TaskStatusSuccess  TaskStatus = "success"
	TaskStatusPartial  TaskStatus = "partial"
	TaskStatusDegraded TaskStatus = "degraded"
	TaskStatusError    TaskStatus = "error"
	TaskStatusSkipped  TaskStatus = "skipped"
)

// Task result sources.
const (
	SourceExchange = "exchange"
	SourceCache    = "cache"
	SourceFallback = "fallback"
)

// TaskMetadata describes a single job invocation.
type TaskMetadata struct {
	Task         string         `json:"task"`
	Timestamp    time.Time      `json:"timestamp"`
	RequestID    string         `json:"request_id"`
	Source       string         `json:"source,omitempty"`
	PriceSource  PriceSource    `json:"price_source,omitempty"`
	PriceMissing bool           `json:"price_missing,omitempty"`
	AuthMethod   string         `json:"auth_method,omitempty"`
	DurationMs   int64          `json:"duration_ms"`
	Alerts       []string       `json:"alerts,omitempty"`
	Error        string         `json:"error,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// TaskResult is returned for every job invocation.
type TaskResult struct {
	Status   TaskStatus   `json:"status"`
	Reason   string       `json:"reason,omitempty"`
	Data     any          `json:"data,omitempty"`
	Metadata TaskMetadata `json:"metadata"`
}
