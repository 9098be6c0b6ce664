// Package api serves the admin HTTP surface: health, live configuration,
// statistics and debug views.
package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/sweepcast/internal/config"
	"github.com/banshee-data/sweepcast/internal/db"
	"github.com/banshee-data/sweepcast/internal/httputil"
	"github.com/banshee-data/sweepcast/internal/lidar/network"
	"github.com/banshee-data/sweepcast/internal/lidar/pipeline"
	"github.com/banshee-data/sweepcast/internal/lidar/protocol"
	"github.com/banshee-data/sweepcast/internal/monitoring"
	"github.com/banshee-data/sweepcast/internal/version"
)

const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxConfigBody bounds POST /api/config bodies.
const maxConfigBody = 64 << 10

// ConfigStore is the part of config.Store the server uses.
type ConfigStore interface {
	Snapshot() config.RuntimeConfig
	ApplyJSON(source string, data []byte) (config.Update, error)
}

// PipelineStatus exposes the pipeline's counters and last emission.
type PipelineStatus interface {
	Stats() *pipeline.Stats
	LastBatch() (*protocol.Batch, bool)
}

// SenderStatus exposes the transport counters.
type SenderStatus interface {
	Stats() network.SenderStats
	Targets() []string
}

// Options configures a Server. Store and Pipeline are required; the rest
// may be nil.
type Options struct {
	Store     ConfigStore
	Pipeline  PipelineStatus
	Sender    SenderStatus
	DB        *db.DB
	SessionID string
	Format    string
	StartedAt time.Time
}

type Server struct {
	store     ConfigStore
	pipeline  PipelineStatus
	sender    SenderStatus
	db        *db.DB
	sessionID string
	format    string
	startedAt time.Time
}

func NewServer(opts Options) *Server {
	if opts.StartedAt.IsZero() {
		opts.StartedAt = time.Now()
	}
	return &Server{
		store:     opts.Store,
		pipeline:  opts.Pipeline,
		sender:    opts.Sender,
		db:        opts.DB,
		sessionID: opts.SessionID,
		format:    opts.Format,
		startedAt: opts.StartedAt,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[api] [%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux builds the route table. Debug views are mounted under /debug/
// through tsweb, which restricts them to local and tailnet callers.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/config/history", s.handleConfigHistory)
	mux.HandleFunc("/api/stats", s.handleStats)

	debug := tsweb.Debugger(mux)
	debug.Handle("scatter", "Last emitted batch as a scatter chart", http.HandlerFunc(s.handleScatter))
	if s.db != nil {
		if err := s.db.AttachAdminRoutes(mux); err != nil {
			monitoring.Logf("[api] database admin routes disabled: %v", err)
		}
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":     "ok",
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"session_id": s.sessionID,
		"format":     s.format,
		"uptime_s":   time.Since(s.startedAt).Seconds(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.store.Snapshot())
	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBody+1))
		if err != nil {
			httputil.BadRequest(w, "failed to read body")
			return
		}
		if len(body) > maxConfigBody {
			httputil.WriteJSONError(w, http.StatusRequestEntityTooLarge, "config update too large")
			return
		}
		u, err := s.store.ApplyJSON("http:"+r.RemoteAddr, body)
		if err != nil {
			monitoring.Logf("[api] rejected config update from %s: %v", r.RemoteAddr, err)
			httputil.BadRequest(w, err.Error())
			return
		}
		applied := u.Applied
		if applied == nil {
			applied = []string{}
		}
		httputil.WriteJSONOK(w, map[string]interface{}{
			"applied": applied,
			"config":  s.store.Snapshot(),
		})
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) handleConfigHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			httputil.BadRequest(w, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	updates, err := s.db.RecentConfigUpdates(limit)
	if err != nil {
		monitoring.Logf("[api] config history: %v", err)
		httputil.InternalServerError(w, "failed to load config history")
		return
	}
	httputil.WriteJSONOK(w, updates)
}

type statsResponse struct {
	SessionID string                 `json:"session_id"`
	Format    string                 `json:"format"`
	Pipeline  pipeline.StatsSnapshot `json:"pipeline"`
	Sender    *network.SenderStats   `json:"sender,omitempty"`
	Targets   []string               `json:"targets,omitempty"`
	LastBatch *batchSummary          `json:"last_batch,omitempty"`
}

type batchSummary struct {
	Time   time.Time `json:"time"`
	Sweep  int       `json:"sweep"`
	Count  int       `json:"count"`
	Detect bool      `json:"detect"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	resp := statsResponse{
		SessionID: s.sessionID,
		Format:    s.format,
		Pipeline:  s.pipeline.Stats().Snapshot(),
	}
	if s.sender != nil {
		st := s.sender.Stats()
		resp.Sender = &st
		resp.Targets = s.sender.Targets()
	}
	if b, ok := s.pipeline.LastBatch(); ok {
		resp.LastBatch = &batchSummary{Time: b.Time, Sweep: b.Sweep, Count: b.Count(), Detect: b.Detect}
	}
	httputil.WriteJSONOK(w, resp)
}

// wantsHTML reports whether the request prefers an HTML response.
func wantsHTML(r *http.Request) bool {
	return r.URL.Query().Get("format") != "json" && !strings.Contains(r.Header.Get("Accept"), "application/json")
}
