package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"hatitenang-backend/internal/logger"
	"hatitenang-backend/internal/middleware"
	"hatitenang-backend/internal/models"
	"hatitenang-backend/internal/services"
)

const (
	maxFrameBytes = 1 << 20
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
)

type stressAnalyzer interface {
	Analyze(ctx context.Context, message string) (int, error)
}

type conversationResponder interface {
	Respond(ctx context.Context, history []models.ChatTurn, currentScore int) (models.ReplyEnvelope, error)
}

// Hub serves the same two pipelines as the HTTP endpoints over a WebSocket.
// Each inbound frame is answered by exactly one outbound frame carrying the
// same id; frames on one connection are handled in order. Every frame counts
// against the rate limit of the client that opened the connection.
type Hub struct {
	analyzer  stressAnalyzer
	responder conversationResponder
	limiter   *middleware.RateLimiter
	upgrader  websocket.Upgrader

	mu          sync.Mutex
	connections map[uuid.UUID]*conn
}

type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *conn) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

func (c *conn) writeControl(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteControl(messageType, data, time.Now().Add(writeWait))
}

// NewHub builds a hub. limiter may be nil, in which case frames are not
// rate limited.
func NewHub(analyzer stressAnalyzer, responder conversationResponder, limiter *middleware.RateLimiter, allowedOrigins []string) *Hub {
	return &Hub{
		analyzer:  analyzer,
		responder: responder,
		limiter:   limiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
		connections: make(map[uuid.UUID]*conn),
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	id := uuid.New()
	c := &conn{ws: ws}
	h.register(id, c)
	defer h.unregister(id)

	// Captured at upgrade: the subject (when authenticated) or peer address.
	key := middleware.ClientKey(r)

	// The request context ends with the handler; detach it but keep log fields.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "websocket"})

	ws.SetReadLimit(maxFrameBytes)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.keepAlive(ctx, c)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.WarnContext(ctx, "websocket read failed", "connection_id", id, "error", err)
			}
			return
		}

		var resp models.WSResponse
		var req models.WSRequest
		switch {
		case json.Unmarshal(data, &req) != nil:
			resp = errorFrame("", "Invalid frame")
		case !h.limiter.Allow(ctx, key):
			resp = errorFrame(req.ID, middleware.TooManyRequestsMessage)
		default:
			resp = h.dispatch(ctx, req)
		}

		if err := c.writeJSON(resp); err != nil {
			slog.WarnContext(ctx, "websocket write failed", "connection_id", id, "error", err)
			return
		}
	}
}

// dispatch runs one frame through the matching pipeline.
func (h *Hub) dispatch(ctx context.Context, req models.WSRequest) models.WSResponse {
	resp := models.WSResponse{ID: req.ID, Type: req.Type}

	switch req.Type {
	case models.WSAnalyzeStress:
		var body models.AnalyzeStressRequest
		if err := json.Unmarshal(req.Payload, &body); err != nil {
			return errorFrame(req.ID, "Invalid payload")
		}
		delta, err := h.analyzer.Analyze(ctx, body.Message)
		if err != nil {
			return errorFrame(req.ID, errorMessage(err))
		}
		resp.Payload = models.AnalyzeStressResponse{StressChange: delta}

	case models.WSGenerateResponse:
		var body models.GenerateResponseRequest
		if err := json.Unmarshal(req.Payload, &body); err != nil {
			return errorFrame(req.ID, "Invalid payload")
		}
		envelope, err := h.responder.Respond(ctx, body.ChatHistory, body.CurrentStressScore)
		if err != nil {
			return errorFrame(req.ID, errorMessage(err))
		}
		resp.Payload = envelope

	default:
		return errorFrame(req.ID, "Unknown frame type")
	}

	return resp
}

func errorFrame(id, message string) models.WSResponse {
	return models.WSResponse{ID: id, Type: models.WSError, Error: message}
}

func errorMessage(err error) string {
	var validation *services.ValidationError
	if errors.As(err, &validation) {
		return validation.Message
	}
	return "An unexpected error occurred"
}

func (h *Hub) keepAlive(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.writeControl(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) register(id uuid.UUID, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[id] = c
	slog.Debug("websocket connected", "connection_id", id, "total", len(h.connections))
}

func (h *Hub) unregister(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.connections[id]; ok {
		c.ws.Close()
		delete(h.connections, id)
	}
	slog.Debug("websocket disconnected", "connection_id", id, "total", len(h.connections))
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

// CloseAll sends a going-away close frame to every client. Used on shutdown,
// since http.Server.Shutdown does not track hijacked connections.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for id, c := range h.connections {
		c.writeControl(websocket.CloseMessage, msg)
		c.ws.Close()
		delete(h.connections, id)
	}
}
