package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hatitenang-backend/internal/models"
	"hatitenang-backend/internal/services"
)

type stubModelClient struct {
	reply string
	err   error
	calls int
}

func (s *stubModelClient) Name() string { return "stub" }

func (s *stubModelClient) Complete(ctx context.Context, req services.CompletionRequest) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func postJSON(t *testing.T, handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dst); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

// ─── Stress Handler Tests ───

func TestAnalyzeStress_ValidInput(t *testing.T) {
	client := &stubModelClient{reply: `{"stressChange": 30}`}
	h := NewStressHandler(services.NewStressAnalyzer(client, nil))

	rr := postJSON(t, h.Analyze, "/analyze-stress", `{"message":"aku merasa putus asa"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp models.AnalyzeStressResponse
	decodeBody(t, rr, &resp)
	if resp.StressChange != 30 {
		t.Errorf("Expected stressChange 30, got %d", resp.StressChange)
	}
}

func TestAnalyzeStress_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty message", `{"message":""}`},
		{"blank message", `{"message":"   "}`},
		{"missing message", `{}`},
		{"malformed body", `{"message":`},
		{"no body", ``},
		{"wrong type", `{"message": 42}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := &stubModelClient{reply: `{"stressChange": 10}`}
			h := NewStressHandler(services.NewStressAnalyzer(client, nil))

			rr := postJSON(t, h.Analyze, "/analyze-stress", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d", rr.Code)
			}

			var resp models.ErrorResponse
			decodeBody(t, rr, &resp)
			if resp.Error == "" {
				t.Error("Expected a non-empty error message")
			}
			if client.calls != 0 {
				t.Errorf("Provider should not be called, got %d calls", client.calls)
			}
		})
	}
}

func TestAnalyzeStress_DegradesToNeutral(t *testing.T) {
	tests := []struct {
		name   string
		client *stubModelClient
	}{
		{"provider error", &stubModelClient{err: errors.New("dial tcp: connection refused")}},
		{"malformed json", &stubModelClient{reply: `not json at all`}},
		{"non-numeric", &stubModelClient{reply: `{"stressChange": "a lot"}`}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewStressHandler(services.NewStressAnalyzer(tc.client, nil))

			rr := postJSON(t, h.Analyze, "/analyze-stress", `{"message":"hari ini berat"}`)
			if rr.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", rr.Code)
			}
			if got := strings.TrimSpace(rr.Body.String()); got != `{"stressChange":1}` {
				t.Errorf("Expected exactly {\"stressChange\":1}, got %s", got)
			}
		})
	}
}

func TestAnalyzeStress_BodyTooLarge(t *testing.T) {
	h := NewStressHandler(services.NewStressAnalyzer(&stubModelClient{}, nil))

	big := `{"message":"` + strings.Repeat("a", MaxBodyBytes+1) + `"}`
	rr := postJSON(t, h.Analyze, "/analyze-stress", big)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", rr.Code)
	}
}

// ─── Conversation Handler Tests ───

func generateBody(score int, turns ...models.ChatTurn) string {
	b, _ := json.Marshal(models.GenerateResponseRequest{ChatHistory: turns, CurrentStressScore: score})
	return string(b)
}

func TestGenerateResponse_EscalationBoundaries(t *testing.T) {
	tests := []struct {
		score    int
		wantType string
	}{
		{74, models.ReplyStandard},
		{75, models.ReplyEscalation},
		{76, models.ReplyEscalation},
	}

	for _, tc := range tests {
		client := &stubModelClient{reply: "Aku mendengarmu."}
		h := NewConversationHandler(services.NewConversationResponder(client, nil, nil))

		rr := postJSON(t, h.Generate, "/generate-response",
			generateBody(tc.score, models.ChatTurn{Role: models.RoleUser, Text: "aku lelah"}))
		if rr.Code != http.StatusOK {
			t.Fatalf("score %d: expected 200, got %d", tc.score, rr.Code)
		}

		var resp models.ReplyEnvelope
		decodeBody(t, rr, &resp)
		if resp.Type != tc.wantType {
			t.Errorf("score %d: expected type %q, got %q", tc.score, tc.wantType, resp.Type)
		}
		if resp.Message != "Aku mendengarmu." {
			t.Errorf("score %d: unexpected message %q", tc.score, resp.Message)
		}
	}
}

func TestGenerateResponse_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty history", `{"chatHistory":[],"currentStressScore":10}`},
		{"missing history", `{"currentStressScore":10}`},
		{"bad role", `{"chatHistory":[{"role":"system","text":"hi"}],"currentStressScore":10}`},
		{"bad parts", `{"chatHistory":[{"role":"user","parts":42}],"currentStressScore":10}`},
		{"malformed body", `{"chatHistory":`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := &stubModelClient{reply: "ok"}
			h := NewConversationHandler(services.NewConversationResponder(client, nil, nil))

			rr := postJSON(t, h.Generate, "/generate-response", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d", rr.Code)
			}
			if client.calls != 0 {
				t.Errorf("Provider should not be called")
			}
		})
	}
}

func TestGenerateResponse_Fallback(t *testing.T) {
	client := &stubModelClient{err: &services.ProviderError{Provider: "stub", Err: errors.New("503")}}
	h := NewConversationHandler(services.NewConversationResponder(client, nil, nil))

	rr := postJSON(t, h.Generate, "/generate-response",
		`{"chatHistory":[{"role":"user","parts":[{"text":"tolong aku"}]}],"currentStressScore":90}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	var resp models.ReplyEnvelope
	decodeBody(t, rr, &resp)
	if resp.Type != models.ReplyStandard {
		t.Errorf("Expected standard fallback, got %q", resp.Type)
	}

	found := false
	for _, f := range services.FallbackReplies {
		if f == resp.Message {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a fallback reply, got %q", resp.Message)
	}
}

func TestGenerateResponse_Idempotent(t *testing.T) {
	client := &stubModelClient{reply: "Ceritakan lebih banyak."}
	h := NewConversationHandler(services.NewConversationResponder(client, nil, nil))
	body := generateBody(50,
		models.ChatTurn{Role: models.RoleUser, Text: "aku cemas"},
		models.ChatTurn{Role: models.RoleModel, Text: "Kenapa?"},
		models.ChatTurn{Role: models.RoleUser, Text: "ujian"},
	)

	first := postJSON(t, h.Generate, "/generate-response", body)
	second := postJSON(t, h.Generate, "/generate-response", body)
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Errorf("Expected identical responses, got %s and %s", first.Body.String(), second.Body.String())
	}
}

// ─── Health Handler Tests ───

func TestRoot_Liveness(t *testing.T) {
	h := NewHealthHandler("gemini")
	rr := httptest.NewRecorder()
	h.Root(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != LivenessMessage {
		t.Errorf("Expected %q, got %q", LivenessMessage, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Expected text/plain, got %q", ct)
	}
}

func TestHealth_ReportsProvider(t *testing.T) {
	h := NewHealthHandler("openai")
	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp map[string]string
	decodeBody(t, rr, &resp)
	if resp["status"] != "ok" || resp["provider"] != "openai" {
		t.Errorf("Unexpected health body: %v", resp)
	}
}
