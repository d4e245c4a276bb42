// Package server exposes the simwatch HTTP API and dashboard.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/simwatch/pipeline"
	"github.com/hazyhaar/simwatch/score"
	"github.com/hazyhaar/simwatch/shield"
	"github.com/hazyhaar/simwatch/store"
)

// CycleRunner triggers a watch cycle on demand.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*pipeline.Summary, error)
}

// Config configures the Server.
type Config struct {
	// AdminUser and AdminPassHash (bcrypt) guard the mutating endpoints.
	// With no hash configured those endpoints refuse all requests.
	AdminUser     string
	AdminPassHash string
	// RateLimit caps requests per IP per minute. Zero disables limiting.
	RateLimit int
}

// Server serves the read API, the admin endpoints, and the dashboard.
type Server struct {
	st     *store.Store
	runner CycleRunner
	// stale reports whether the last cycle is past the dead-man window.
	stale  func(ctx context.Context) (bool, error)
	config Config
	logger *slog.Logger
}

// New creates a Server. runner and stale may be nil; the corresponding
// endpoints then report unavailability instead of panicking.
func New(st *store.Store, runner CycleRunner, stale func(ctx context.Context) (bool, error), cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{st: st, runner: runner, stale: stale, config: cfg, logger: logger}
}

// Routes builds the chi router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	for _, mw := range shield.DefaultStack() {
		r.Use(mw)
	}
	if s.config.RateLimit > 0 {
		rl := shield.NewRateLimiter(shield.RateLimitConfig{
			MaxRequests: s.config.RateLimit,
			Window:      time.Minute,
		}, "/healthz")
		r.Use(rl.Middleware)
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	r.Get("/dashboard", s.handleDashboard)

	r.Route("/api", func(r chi.Router) {
		r.Get("/top", s.handleTop)
		r.Get("/entities/{name}", s.handleEntity)
		r.Get("/entities/{name}/history", s.handleHistory)
		r.Get("/alerts", s.handleAlerts)
		r.Get("/stats", s.handleStats)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/cycle", s.handleRunCycle)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.stale != nil {
		stale, err := s.stale(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		resp["stale"] = stale
		if stale {
			resp["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "n", 0)
	if limit <= 0 {
		limit = queryInt(r, "limit", 10)
	}
	top, err := s.st.TopEntities(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	type entry struct {
		*store.StoredSnapshot
		Band string `json:"band"`
	}
	out := make([]entry, 0, len(top))
	for _, snap := range top {
		out = append(out, entry{snap, score.Band(snap.Score)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap, err := s.st.LatestSnapshot(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, errors.New("entity not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot": snap,
		"band":     score.Band(snap.Score),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	// days=N counts back from now; without it the newest snapshots win.
	var since time.Time
	if days := queryInt(r, "days", 0); days > 0 {
		since = time.Now().AddDate(0, 0, -days)
	}
	hist, err := s.st.EntityHistory(r.Context(), name, since, queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if hist == nil {
		hist = []*store.StoredSnapshot{}
	}
	writeJSON(w, http.StatusOK, hist)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	// Lookback window: days=N counts back from now, since= takes an exact
	// RFC3339 cutoff. With neither, the newest changes are returned.
	var since time.Time
	if days := queryInt(r, "days", 0); days > 0 {
		since = time.Now().AddDate(0, 0, -days)
	}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("since must be RFC3339"))
			return
		}
		since = t
	}
	changes, err := s.st.RecentChanges(r.Context(), since, queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if changes == nil {
		changes = []*store.StoredChange{}
	}
	writeJSON(w, http.StatusOK, changes)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.st.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("cycle runner not configured"))
		return
	}
	sum, err := s.runner.RunCycle(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// requireAdmin enforces HTTP Basic auth against the configured bcrypt hash.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.AdminPassHash == "" {
			writeError(w, http.StatusServiceUnavailable, errors.New("admin auth not configured"))
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.config.AdminUser)) != 1 ||
			bcrypt.CompareHashAndPassword([]byte(s.config.AdminPassHash), []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="simwatch"`)
			writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
