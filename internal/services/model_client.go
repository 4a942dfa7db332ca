package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/invopop/jsonschema"

	"hatitenang-backend/internal/models"
)

type OutputFormat int

const (
	FormatText OutputFormat = iota
	FormatJSON
)

// CompletionRequest is one provider call: a system instruction followed by
// the conversation turns, oldest first.
type CompletionRequest struct {
	SystemPrompt string
	Turns        []models.ChatTurn
	Format       OutputFormat
	SchemaName   string
	Schema       *jsonschema.Schema // optional, only with FormatJSON
}

// ModelClient is the single seam to the language model provider. Implementations
// return *ProviderError for every failure and never retry.
type ModelClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Name() string
}

// UsageRecorder receives one event per pipeline invocation.
type UsageRecorder interface {
	Record(ctx context.Context, event models.UsageEvent)
}

// LogRecorder writes usage events to the debug log.
type LogRecorder struct{}

func (LogRecorder) Record(ctx context.Context, event models.UsageEvent) {
	slog.DebugContext(ctx, "usage event",
		"endpoint", event.Endpoint,
		"outcome", event.Outcome,
		"provider", event.Provider,
		"latency_ms", event.LatencyMS,
	)
}

// WithTimeout bounds every Complete call and normalises errors to *ProviderError.
func WithTimeout(client ModelClient, timeout time.Duration) ModelClient {
	return &timeoutClient{ModelClient: client, timeout: timeout}
}

type timeoutClient struct {
	ModelClient
	timeout time.Duration
}

func (c *timeoutClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.ModelClient.Complete(ctx, req)
	if err != nil {
		var providerErr *ProviderError
		if !errors.As(err, &providerErr) {
			err = &ProviderError{Provider: c.Name(), Err: err}
		}
		return "", err
	}
	return text, nil
}
