package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"hatitenang-backend/internal/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID echoes the caller's X-Request-ID or generates one, and attaches it
// to the request context for logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		r.Header.Set(RequestIDHeader, id)
		w.Header().Set(RequestIDHeader, id)

		ctx := logger.WithLogFields(r.Context(), logger.LogFields{RequestID: id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
