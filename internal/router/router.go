package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"hatitenang-backend/internal/handlers"
	"hatitenang-backend/internal/middleware"
	"hatitenang-backend/internal/websocket"
)

// New wires the routes. jwtAuth may be nil, in which case the relay endpoints
// are public. trustProxy takes the client address from X-Forwarded-For or
// X-Real-IP; enable it only behind a proxy that overwrites those headers, or
// clients can pick their own rate limit key.
func New(
	healthHandler *handlers.HealthHandler,
	stressHandler *handlers.StressHandler,
	conversationHandler *handlers.ConversationHandler,
	wsHub *websocket.Hub,
	limiter *middleware.RateLimiter,
	jwtAuth *middleware.JWTAuth,
	corsOrigins []string,
	trustProxy bool,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	if trustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.CORS(corsOrigins))

	r.Get("/", healthHandler.Root)
	r.Get("/health", healthHandler.Health)

	r.Group(func(r chi.Router) {
		// Auth first so the limiter can key on the subject.
		if jwtAuth != nil {
			r.Use(jwtAuth.Middleware)
		}
		r.Use(limiter.Middleware)

		r.Post("/analyze-stress", stressHandler.Analyze)
		r.Post("/generate-response", conversationHandler.Generate)
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
