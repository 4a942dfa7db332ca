package services

import (
	"context"
	"sync"

	"hatitenang-backend/internal/models"
)

type stubModelClient struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []CompletionRequest
}

func (s *stubModelClient) Name() string { return "stub" }

func (s *stubModelClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubModelClient) lastRequest() CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

type recordingRecorder struct {
	events []models.UsageEvent
}

func (r *recordingRecorder) Record(ctx context.Context, event models.UsageEvent) {
	r.events = append(r.events, event)
}
