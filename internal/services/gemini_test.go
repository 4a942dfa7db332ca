package services

import (
	"testing"

	"github.com/google/generative-ai-go/genai"

	"hatitenang-backend/internal/models"
)

func TestGeminiContents(t *testing.T) {
	turns := []models.ChatTurn{
		{Role: models.RoleModel, Text: "Halo, apa kabar?"},
		{Role: models.RoleUser, Text: "capek"},
		{Role: models.RoleUser, Text: "banget"},
		{Role: models.RoleModel, Text: "Kenapa?"},
		{Role: models.RoleUser, Text: "kerjaan"},
	}

	history, last := geminiContents(turns)
	if last == nil {
		t.Fatal("expected a final user content")
	}
	if last.Role != "user" || len(last.Parts) != 1 || last.Parts[0] != genai.Text("kerjaan") {
		t.Errorf("unexpected last content: %+v", last)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history contents, got %d", len(history))
	}
	if history[0].Role != "user" || len(history[0].Parts) != 2 {
		t.Errorf("expected merged opening user content, got %+v", history[0])
	}
	if history[1].Role != "model" {
		t.Errorf("expected model role to be kept, got %q", history[1].Role)
	}
}

func TestGeminiContents_NothingToAnswer(t *testing.T) {
	tests := []struct {
		name  string
		turns []models.ChatTurn
	}{
		{"empty", nil},
		{"only model", []models.ChatTurn{{Role: models.RoleModel, Text: "hi"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			history, last := geminiContents(tc.turns)
			if last != nil || history != nil {
				t.Errorf("expected nothing to send, got history=%v last=%v", history, last)
			}
		})
	}
}

func TestGeminiContents_TrailingModelDropped(t *testing.T) {
	turns := []models.ChatTurn{
		{Role: models.RoleUser, Text: "halo"},
		{Role: models.RoleModel, Text: "hai"},
	}

	history, last := geminiContents(turns)
	if len(history) != 0 {
		t.Errorf("expected empty history, got %d", len(history))
	}
	if last == nil || last.Parts[0] != genai.Text("halo") {
		t.Errorf("expected the user turn to be sent, got %+v", last)
	}
}

func TestGeminiSchema_StressVerdict(t *testing.T) {
	s := geminiSchema(SchemaFor[stressVerdict]())

	if s.Type != genai.TypeObject {
		t.Fatalf("expected object schema, got %v", s.Type)
	}
	prop, ok := s.Properties["stressChange"]
	if !ok {
		t.Fatalf("expected stressChange property, got %v", s.Properties)
	}
	if prop.Type != genai.TypeInteger {
		t.Errorf("expected integer stressChange, got %v", prop.Type)
	}
	if len(s.Required) != 1 || s.Required[0] != "stressChange" {
		t.Errorf("expected stressChange to be required, got %v", s.Required)
	}
}

func TestGeminiSchema_Nil(t *testing.T) {
	if geminiSchema(nil) != nil {
		t.Error("expected nil schema for nil input")
	}
}
