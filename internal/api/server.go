// Package api exposes the curriculum, AI tutor, quizzes and progress over HTTP.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/p-n-ai/statsquest/internal/curriculum"
	"github.com/p-n-ai/statsquest/internal/live"
	"github.com/p-n-ai/statsquest/internal/progress"
	"github.com/p-n-ai/statsquest/internal/quiz"
	"github.com/p-n-ai/statsquest/internal/tutor"
)

const readyTimeout = 2 * time.Second

// Explainer produces a talk-through for a topic. *tutor.Gateway implements it.
type Explainer interface {
	GenerateTalkThrough(ctx context.Context, topicTitle, topicContent string) (string, error)
}

// Checker is a dependency probed by /readyz.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Curriculum *curriculum.Loader
	Progress   *progress.Store
	Tutor      Explainer
	Quiz       *quiz.Tracker
	Hub        *live.Hub
	// Checks are probed by /readyz, keyed by name.
	Checks map[string]Checker
	// AllowedOrigins are extra Origin host patterns accepted by the WebSocket feed.
	AllowedOrigins []string
}

// Server routes HTTP requests.
type Server struct {
	deps Deps
	mux  *http.ServeMux

	// explains shares one provider call between concurrent requests for the same topic.
	explains singleflight.Group
}

// New creates a server and registers all routes.
func New(deps Deps) *Server {
	if deps.Hub == nil {
		deps.Hub = live.NewHub()
	}
	s := &Server{deps: deps, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)

	s.mux.HandleFunc("GET /api/units", s.handleUnits)
	s.mux.HandleFunc("GET /api/topics/{id}", s.handleTopic)
	s.mux.HandleFunc("POST /api/topics/{id}/explain", s.handleExplain)
	s.mux.HandleFunc("POST /api/topics/{id}/quiz", s.handleNextQuestion)
	s.mux.HandleFunc("POST /api/topics/{id}/quiz/finish", s.handleFinishQuiz)
	s.mux.HandleFunc("POST /api/topics/{id}/complete", s.handleComplete)
	s.mux.HandleFunc("POST /api/quiz/{qid}/answer", s.handleAnswer)
	s.mux.HandleFunc("POST /api/quiz/{qid}/hint", s.handleHint)

	s.mux.HandleFunc("GET /api/charts/normal", s.handleNormalChart)
	s.mux.HandleFunc("GET /api/charts/normal.png", s.handleNormalChartPNG)

	s.mux.HandleFunc("GET /api/progress", s.handleProgress)
	s.mux.HandleFunc("GET /api/progress/report.xlsx", s.handleReport)
	s.mux.Handle("GET /ws/progress", live.NewHandler(s.deps.Hub, s.deps.Progress.Summary, s.deps.AllowedOrigins...))
}

// Handler returns the router wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failed := make(map[string]string)
	for name, c := range s.deps.Checks {
		if err := c.HealthCheck(ctx); err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failed})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Retry bool   `json:"retry,omitempty"`
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorBody{Error: msg})
}

// respondGatewayError maps a tutor failure to 502 with its user-facing message.
// Other errors are internal.
func respondGatewayError(w http.ResponseWriter, err error, retry bool) {
	var gwErr *tutor.Error
	if errors.As(err, &gwErr) {
		respondJSON(w, http.StatusBadGateway, errorBody{Error: gwErr.Error(), Retry: retry})
		return
	}
	slog.Error("unexpected error", "error", err)
	respondError(w, http.StatusInternalServerError, "internal error")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is required by the WebSocket upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
