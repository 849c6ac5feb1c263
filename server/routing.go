package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/promanage/logger"
)

// RequestIDHeader carries the request id in and out
const RequestIDHeader = "X-Request-ID"

// Handler returns the full HTTP handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/projects/schedule", s.HandleSchedule)    // Trigger a run (POST, ?dry_run=true)
	mux.HandleFunc("/api/projects/all", s.HandleAll)              // List items (GET)
	mux.HandleFunc("/api/projects/add", s.HandleAdd)              // Create item (POST)
	mux.HandleFunc("/api/projects/runs", s.HandleRuns)            // Run history (GET, ?limit=N)
	mux.HandleFunc("/api/projects/max-profit", s.HandleMaxProfit) // Read-only best schedule (GET)
	mux.HandleFunc("/ws/schedule", s.HandleScheduleWebSocket)     // Live run feed
	mux.HandleFunc("/health", s.HandleHealth)

	return s.requestIDMiddleware(s.corsMiddleware(mux))
}

// checkOrigin validates an Origin header against server.allowed_origins.
// Entries match by prefix so any port is accepted; "*" allows everything.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config().GetServerAllowedOrigins() {
		if allowed == "*" || strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}

// corsMiddleware adds CORS headers for allowed origins and answers preflight requests
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware tags every request with an id, reusing the caller's if sent
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		start := time.Now()
		ctx := logger.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))

		s.logger.Debugw("Request handled",
			logger.FieldRequestID, id,
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldRemote, r.RemoteAddr,
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
		)
	})
}
