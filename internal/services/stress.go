package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"

	"hatitenang-backend/internal/logger"
	"hatitenang-backend/internal/models"
)

const (
	// NeutralStressChange is returned whenever the model cannot be trusted.
	NeutralStressChange = 1

	MinStressChange = -20
	MaxStressChange = 40
)

// stressVerdict is the structured output requested from the model.
type stressVerdict struct {
	StressChange int `json:"stressChange" jsonschema_description:"Change in stress level between -20 and 40"`
}

const stressAnalysisPrompt = `Analyze the sentiment of the user's text, which is part of a conversation where they are venting about how they feel.
Respond ONLY with valid JSON.
The JSON must have exactly one key, "stressChange", whose value is an integer between -20 and +40.
- Use a positive value when the text shows stress, anxiety or sadness (for example +30 for "I feel hopeless").
- Use a negative value when the text shows relief, happiness or positive sentiment (for example -15 for "I feel better now").
- Use a value close to 0 for neutral text.
Do not add any explanation outside the JSON.`

type StressAnalyzer struct {
	client   ModelClient
	recorder UsageRecorder
	schema   *jsonschema.Schema
}

func NewStressAnalyzer(client ModelClient, recorder UsageRecorder) *StressAnalyzer {
	if recorder == nil {
		recorder = LogRecorder{}
	}
	return &StressAnalyzer{
		client:   client,
		recorder: recorder,
		schema:   SchemaFor[stressVerdict](),
	}
}

// Analyze classifies message and returns the stress delta to apply. Only an
// empty message is an error; provider and parse failures yield NeutralStressChange.
func (a *StressAnalyzer) Analyze(ctx context.Context, message string) (int, error) {
	if strings.TrimSpace(message) == "" {
		return 0, &ValidationError{Message: "Message must not be empty"}
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "stress"})
	start := time.Now()

	raw, err := a.client.Complete(ctx, CompletionRequest{
		SystemPrompt: stressAnalysisPrompt,
		Turns:        []models.ChatTurn{{Role: models.RoleUser, Text: message}},
		Format:       FormatJSON,
		SchemaName:   "StressVerdict",
		Schema:       a.schema,
	})

	delta := NeutralStressChange
	outcome := models.OutcomeFallback
	if err != nil {
		slog.WarnContext(ctx, "stress analysis fell back: provider call failed",
			"error", err,
			"message_chars", len(message),
		)
	} else if parsed, parseErr := ParseStressChange(raw); parseErr != nil {
		var pe *ParseError
		reason := ""
		if errors.As(parseErr, &pe) {
			reason = pe.Reason
		}
		slog.WarnContext(ctx, "stress analysis fell back: unusable model output",
			"reason", reason,
			"error", parseErr,
			"raw", logger.Truncate(raw, 200),
		)
	} else {
		delta = parsed
		outcome = models.OutcomeOK
	}

	slog.InfoContext(ctx, "stress analyzed",
		"message_chars", len(message),
		"stress_change", delta,
		"outcome", outcome,
	)

	a.recorder.Record(ctx, models.UsageEvent{
		ID:        uuid.New(),
		Endpoint:  "analyze-stress",
		Outcome:   outcome,
		Provider:  a.client.Name(),
		LatencyMS: time.Since(start).Milliseconds(),
		CreatedAt: time.Now().UTC(),
	})

	return delta, nil
}

// ParseStressChange extracts the stressChange integer from raw model output,
// tolerating code fences and surrounding prose. Numbers are truncated toward
// zero and strings contribute their leading signed integer ("12abc" is 12), as
// a base-10 parseInt would. The result is clamped to [MinStressChange, MaxStressChange].
func ParseStressChange(raw string) (int, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return 0, &ParseError{Reason: ParseReasonInvalidJSON, Err: errors.New("empty output")}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		// Fall back to the first top-level JSON object.
		start := strings.IndexByte(body, '{')
		end := strings.LastIndexByte(body, '}')
		if start < 0 || end <= start {
			return 0, &ParseError{Reason: ParseReasonInvalidJSON, Err: err}
		}
		if err := json.Unmarshal([]byte(body[start:end+1]), &fields); err != nil {
			return 0, &ParseError{Reason: ParseReasonInvalidJSON, Err: err}
		}
	}

	value, ok := fields["stressChange"]
	if !ok || string(value) == "null" {
		return 0, &ParseError{Reason: ParseReasonMissingField, Err: errors.New(`"stressChange" is absent`)}
	}

	f, err := numericValue(value)
	if err != nil {
		return 0, &ParseError{Reason: ParseReasonNotNumeric, Err: err}
	}

	f = math.Max(MinStressChange, math.Min(MaxStressChange, math.Trunc(f)))
	return int(f), nil
}

func numericValue(value json.RawMessage) (float64, error) {
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}

	var f float64
	var err error
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case string:
		f, err = integerPrefix(t)
	default:
		return 0, fmt.Errorf("stressChange has type %T", v)
	}
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("stressChange is not a finite number")
	}
	return f, nil
}

// integerPrefix reads an optional sign and the run of decimal digits that
// follows, after leading whitespace. Anything after the digits is ignored.
func integerPrefix(s string) (float64, error) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)

	sign := 1.0
	if s != "" && (s[0] == '+' || s[0] == '-') {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("stressChange %q has no leading integer", s)
	}

	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, err
	}
	return sign * f, nil
}

func stripCodeFence(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
