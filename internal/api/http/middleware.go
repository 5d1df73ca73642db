// Package http exposes the split planner over HTTP/JSON.
package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	headerRequestID     = "X-Request-ID"
	headerCorrelationID = "X-Correlation-ID"
)

type requestMetaKey struct{}

// requestMeta identifies one planning request. CorrelationID ties it to the
// engine query that asked for splits and defaults to ID.
type requestMeta struct {
	ID            string
	CorrelationID string
}

// ErrorResponse is the body of every non-2xx response. Code is the planner
// error code when planning failed.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// RequestIDMiddleware attaches request and correlation ids, taking them from
// the X-Request-ID and X-Correlation-ID headers when the scheduler sends them,
// and echoes both back.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := requestMeta{
			ID:            r.Header.Get(headerRequestID),
			CorrelationID: r.Header.Get(headerCorrelationID),
		}
		if meta.ID == "" {
			meta.ID = uuid.NewString()
		}
		if meta.CorrelationID == "" {
			meta.CorrelationID = meta.ID
		}
		w.Header().Set(headerRequestID, meta.ID)
		w.Header().Set(headerCorrelationID, meta.CorrelationID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestMetaKey{}, meta)))
	})
}

// RecoveryMiddleware turns a panic in a handler into a logged 500.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				id := GetRequestID(r.Context())
				log.Printf("panic serving %s %s (request %s): %v", r.Method, r.URL.Path, id, rec)
				writeError(w, http.StatusInternalServerError, "internal server error", id)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ContentTypeMiddleware answers in JSON and rejects request bodies declared
// as anything else with 415.
func ContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ct := r.Header.Get("Content-Type")
		if r.ContentLength > 0 && ct != "" && !strings.HasPrefix(ct, "application/json") {
			writeError(w, http.StatusUnsupportedMediaType, "content type must be application/json", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ChainMiddleware applies middlewares so the first one is outermost.
func ChainMiddleware(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			h = middlewares[i](h)
		}
		return h
	}
}

// DefaultMiddleware is the chain every planning endpoint runs behind. Ids
// are attached before recovery so a panic is logged with its request id.
func DefaultMiddleware() func(http.Handler) http.Handler {
	return ChainMiddleware(RequestIDMiddleware, RecoveryMiddleware, ContentTypeMiddleware)
}

func writeError(w http.ResponseWriter, status int, message, requestID string) {
	writeJSON(w, status, ErrorResponse{Error: message, RequestID: requestID})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func metaFrom(ctx context.Context) requestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(requestMeta)
	return meta
}

// GetRequestID returns the request id attached by RequestIDMiddleware.
func GetRequestID(ctx context.Context) string {
	return metaFrom(ctx).ID
}

// GetCorrelationID returns the correlation id attached by RequestIDMiddleware.
func GetCorrelationID(ctx context.Context) string {
	return metaFrom(ctx).CorrelationID
}
