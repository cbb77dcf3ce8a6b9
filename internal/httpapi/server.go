package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/boardwise/movecoach/internal/boardimg"
	"github.com/boardwise/movecoach/internal/report"
	"github.com/boardwise/movecoach/internal/service/review"
	"github.com/boardwise/movecoach/pkg/coachdto"
)

const (
	maxReviewBody = 4 << 20
	pingTimeout   = 2 * time.Second
)

// Server exposes the review pipeline over HTTP: submitting and
// canceling runs, streaming progress, and reading stored results.
type Server struct {
	reviews  *review.Service
	renderer boardimg.Renderer
	reporter *report.Formatter
	logger   *zap.Logger
}

func NewServer(reviews *review.Service, renderer boardimg.Renderer, reporter *report.Formatter, logger *zap.Logger) (*Server, error) {
	if reviews == nil {
		return nil, fmt.Errorf("review service is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("board renderer is required")
	}
	if reporter == nil {
		return nil, fmt.Errorf("report formatter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{reviews: reviews, renderer: renderer, reporter: reporter, logger: logger}, nil
}

// Handler returns the routed handler with request ids and access
// logging attached.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/games/", s.routeGames)
	return requestID(s.accessLog(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()
	if err := s.reviews.Ping(ctx); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, coachdto.ErrorResponse{Code: code, Message: message})
}

type ctxKey int

const requestIDKey ctxKey = 1

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()[:8]
		}
		w.Header().Set("X-Request-ID", rid)
		ctx := context.WithValue(r.Context(), requestIDKey, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// accessLog leaves the ResponseWriter unwrapped so the websocket
// upgrade can still hijack the connection.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request completed",
			zap.String("rid", requestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
