package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/campuspay/campuspay-api/internal/pkg/logger"
)

const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 64

// timeoutBody mirrors the response envelope; http.TimeoutHandler writes it verbatim.
const timeoutBody = `{"success":false,"error":{"code":"TIMEOUT","message":"Request timed out"}}`

// RequestID keeps a caller-supplied id when it looks sane, otherwise mints one.
// The id is echoed back and attached to the request logger.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)
		r.Header.Set(RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), requestID)))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

// Timeout bounds handler time. Gateway calls carry their own shorter client
// timeouts, so this only trips on a stuck database.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, timeoutBody)
	}
}
