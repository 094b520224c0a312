package handlers

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"floodguard/pkg/logging"
	"floodguard/pkg/metrics"
)

// RequestIDHeader carries the request correlation ID
const RequestIDHeader = "X-Request-ID"

// RequestID tags each request with an ID, reusing a client-supplied one
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Instrument counts and times requests by route template
func Instrument(logger *logging.StructuredLogger, m *metrics.Collector) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := routeName(r)
			duration := time.Since(start)
			m.APIRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
			m.RecordAPIRequest(route, r.Method, strconv.Itoa(rec.status))

			logger.Debug(r.Context(), "[API_REQUEST] Request served", logging.Fields{
				"method":      r.Method,
				"route":       route,
				"status":      rec.status,
				"duration_ms": duration.Milliseconds(),
			})
		})
	}
}

// RequireToken guards a handler with a static bearer token. An empty token
// disables the handler.
func RequireToken(token string, m *metrics.Collector, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token == "" {
			sendError(w, r, m, "endpoint disabled: no API token configured", http.StatusForbidden)
			return
		}
		given := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="floodguard"`)
			sendError(w, r, m, "invalid or missing bearer token", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// routeName returns the matched route template, falling back to the path
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}
