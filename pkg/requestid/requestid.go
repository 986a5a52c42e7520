package requestid

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type contextKey string

const RequestIDKey contextKey = "request_id"

// Header carries the request id in both directions.
const Header = "X-Request-Id"

// Generate creates a new unique request ID
func Generate() string {
	return uuid.New().String()
}

// ToContext adds a request ID to the context
func ToContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// FromContext extracts the request ID from the context.
// Returns empty string if request ID is not found.
func FromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

func FromRequest(r *http.Request) string {
	return FromContext(r.Context())
}

// Middleware takes the request id from the X-Request-Id header, falls back
// to the one chi generated, and mints a uuid otherwise. The id is echoed in
// the response header.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = middleware.GetReqID(r.Context())
		}
		if requestID == "" {
			requestID = Generate()
		}

		w.Header().Set(Header, requestID)
		next.ServeHTTP(w, r.WithContext(ToContext(r.Context(), requestID)))
	})
}
