package models

import (
	"time"

	"github.com/google/uuid"
)

// Usage outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
)

// UsageEvent records one pipeline invocation. It never carries message text,
// history or scores.
type UsageEvent struct {
	ID        uuid.UUID `json:"id"`
	Endpoint  string    `json:"endpoint"` // "analyze-stress" | "generate-response"
	Outcome   string    `json:"outcome"`  // "ok" | "fallback"
	Provider  string    `json:"provider"`
	LatencyMS int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}
