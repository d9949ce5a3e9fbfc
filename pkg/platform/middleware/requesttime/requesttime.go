// Package requesttime stamps each request with a single "now" and a request ID
// so every log line, narration and response metadata of one lookup agree.
package requesttime

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"diligence/pkg/requestcontext"
)

// RequestIDHeader carries a caller-supplied request ID and echoes the effective one.
const RequestIDHeader = "X-Request-ID"

const maxInboundRequestIDLength = 128

// Middleware captures the current time and a request ID at the start of the
// request. An inbound X-Request-ID is honoured when it is short and printable;
// otherwise a random UUID is issued.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := sanitizeRequestID(r.Header.Get(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		ctx = requestcontext.WithRequestID(ctx, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sanitizeRequestID(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > maxInboundRequestIDLength {
		return ""
	}
	for _, c := range v {
		if c < 0x21 || c > 0x7e {
			return ""
		}
	}
	return v
}
