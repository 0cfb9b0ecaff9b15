package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"jobplane/internal/logger"
)

// requestIDHeader is the header clients may set to correlate a request
// across systems; if absent, a new ID is generated.
const requestIDHeader = "X-Request-Id"

// RequestID attaches a request ID to the request's context (readable via
// logger.RequestIDFromContext) and echoes it back on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := logger.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
