package services

import (
	"testing"

	"hatitenang-backend/internal/models"
)

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	client, err := NewOpenAIClient("", "", "", 0.7)
	if err == nil {
		t.Fatal("Expected error for empty API key, got nil")
	}
	if client != nil {
		t.Fatal("Expected nil client for empty API key")
	}
}

func TestNewOpenAIClient_DefaultModel(t *testing.T) {
	client, err := NewOpenAIClient("sk-test", "", "", 0.7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.model != "gpt-4o-mini" {
		t.Errorf("expected default model gpt-4o-mini, got %q", client.model)
	}
}

func TestOpenAIClient_ResponseFormat(t *testing.T) {
	req := CompletionRequest{Format: FormatJSON, SchemaName: "stress_verdict", Schema: SchemaFor[stressVerdict]()}

	official, _ := NewOpenAIClient("sk-test", "", "", 0.7)
	if f := official.responseFormat(req); f.OfJSONSchema == nil {
		t.Error("expected json_schema against the OpenAI API")
	}

	groq, _ := NewOpenAIClient("gsk-test", "https://api.groq.com/openai/v1", "llama3-8b-8192", 0.7)
	if f := groq.responseFormat(req); f.OfJSONObject == nil || f.OfJSONSchema != nil {
		t.Error("expected json_object against a compatible gateway")
	}

	if f := official.responseFormat(CompletionRequest{Format: FormatJSON}); f.OfJSONObject == nil {
		t.Error("expected json_object without a schema")
	}
}

func TestOpenAIMessages_MapsRoles(t *testing.T) {
	msgs := openAIMessages(CompletionRequest{
		SystemPrompt: "be kind",
		Turns: []models.ChatTurn{
			{Role: models.RoleUser, Text: "halo"},
			{Role: models.RoleModel, Text: "hai"},
		},
	})

	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].OfSystem == nil {
		t.Error("expected first message to be the system instruction")
	}
	if msgs[1].OfUser == nil {
		t.Error("expected user turn to map to a user message")
	}
	if msgs[2].OfAssistant == nil {
		t.Error("expected model turn to map to an assistant message")
	}
}

func TestOpenAIMessages_NoSystemPrompt(t *testing.T) {
	msgs := openAIMessages(CompletionRequest{
		Turns: []models.ChatTurn{{Role: models.RoleUser, Text: "halo"}},
	})
	if len(msgs) != 1 || msgs[0].OfUser == nil {
		t.Fatalf("expected a single user message, got %d", len(msgs))
	}
}
