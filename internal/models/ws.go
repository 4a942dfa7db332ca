package models

import "encoding/json"

// WebSocket frame types
const (
	WSAnalyzeStress    = "analyze-stress"
	WSGenerateResponse = "generate-response"
	WSError            = "error"
)

// WSRequest is an inbound WebSocket frame. Payload has the same shape as the
// matching HTTP request body.
type WSRequest struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// WSResponse answers a WSRequest with the same ID.
type WSResponse struct {
	ID      string      `json:"id,omitempty"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	Error   string      `json:"error,omitempty"`
}
