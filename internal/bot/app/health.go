package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/contessasoft/nyati/common/version"
	"github.com/contessasoft/nyati/internal/bot/handoff"
	"github.com/contessasoft/nyati/internal/bot/history"
)

// HealthServer exposes /health, /status, and the read-only /admin endpoints
// for inspecting live handoffs and user history.
type HealthServer struct {
	addr      string
	stats     statusProvider
	admin     adminProvider
	startedAt time.Time
	server    *http.Server
	mux       *http.ServeMux
}

// statusProvider is the minimal interface the status endpoint needs.
type statusProvider interface {
	SessionCount(ctx context.Context) (int, error)
	HandoffCount(ctx context.Context) (int, error)
}

// adminProvider serves the admin inspection endpoints.
type adminProvider interface {
	Handoffs(ctx context.Context) ([]*handoff.Conversation, error)
	HandoffByID(ctx context.Context, id string) (*handoff.Conversation, error)
	History(ctx context.Context, identifier string) ([]history.Message, []history.CompletedForm, error)
}

// healthResponse is returned by GET /health.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// statusResponse is returned by GET /status.
type statusResponse struct {
	Status       string    `json:"status"`
	Version      string    `json:"version"`
	Commit       string    `json:"commit"`
	BuildTime    string    `json:"build_time"`
	StartedAt    time.Time `json:"started_at"`
	UptimeSecs   float64   `json:"uptime_seconds"`
	SessionCount int       `json:"session_count"`
	HandoffCount int       `json:"handoff_count"`
}

// historyResponse is returned by GET /admin/history/{identifier}.
type historyResponse struct {
	Identifier string                  `json:"identifier"`
	Messages   []history.Message       `json:"messages"`
	Forms      []history.CompletedForm `json:"forms"`
}

// NewHealthServer creates and configures the HTTP server (does not start it).
func NewHealthServer(addr string, stats statusProvider, admin adminProvider) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		addr:      addr,
		stats:     stats,
		admin:     admin,
		startedAt: time.Now(),
		mux:       mux,
	}
	mux.HandleFunc("/health", hs.handleHealth)
	mux.HandleFunc("/status", hs.handleStatus)
	mux.HandleFunc("/admin/handoffs", hs.handleHandoffs)
	mux.HandleFunc("/admin/handoffs/", hs.handleHandoffByID)
	mux.HandleFunc("/admin/history/", hs.handleHistory)
	return hs
}

// ServeHTTP implements http.Handler so the server can be tested without a
// live network listener.
func (h *HealthServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Start begins listening in the background.  Blocks until the listener is
// established so the caller knows the port is open before returning.
func (h *HealthServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("health server: listen %s: %w", h.addr, err)
	}

	h.server = &http.Server{
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("health server listening", "addr", ln.Addr().String())
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("health server stopped", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("health server shutdown error", "err", err)
		}
	}()

	return nil
}

// Stop shuts down the HTTP server.
func (h *HealthServer) Stop() {
	if h.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		slog.Warn("health server shutdown error", "err", err)
	}
}

func (h *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.Version,
		Commit:  version.GitCommit,
	})
}

func (h *HealthServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	var sessions, handoffs int
	if h.stats != nil {
		if n, err := h.stats.SessionCount(r.Context()); err == nil {
			sessions = n
		}
		if n, err := h.stats.HandoffCount(r.Context()); err == nil {
			handoffs = n
		}
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:       "ok",
		Version:      version.Version,
		Commit:       version.GitCommit,
		BuildTime:    version.BuildTime,
		StartedAt:    h.startedAt,
		UptimeSecs:   time.Since(h.startedAt).Seconds(),
		SessionCount: sessions,
		HandoffCount: handoffs,
	})
}

func (h *HealthServer) handleHandoffs(w http.ResponseWriter, r *http.Request) {
	if h.admin == nil {
		http.Error(w, "admin endpoints disabled", http.StatusNotFound)
		return
	}
	convs, err := h.admin.Handoffs(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if convs == nil {
		convs = []*handoff.Conversation{}
	}
	writeJSON(w, http.StatusOK, convs)
}

func (h *HealthServer) handleHandoffByID(w http.ResponseWriter, r *http.Request) {
	if h.admin == nil {
		http.Error(w, "admin endpoints disabled", http.StatusNotFound)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/admin/handoffs/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "bad handoff id", http.StatusBadRequest)
		return
	}
	conv, err := h.admin.HandoffByID(r.Context(), id)
	if err != nil {
		http.Error(w, "handoff not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *HealthServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.admin == nil {
		http.Error(w, "admin endpoints disabled", http.StatusNotFound)
		return
	}
	identifier := strings.TrimPrefix(r.URL.Path, "/admin/history/")
	if identifier == "" || strings.Contains(identifier, "/") {
		http.Error(w, "bad identifier", http.StatusBadRequest)
		return
	}
	msgs, forms, err := h.admin.History(r.Context(), identifier)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []history.Message{}
	}
	if forms == nil {
		forms = []history.CompletedForm{}
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Identifier: identifier,
		Messages:   msgs,
		Forms:      forms,
	})
}

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("health: failed to encode JSON response", "err", err)
	}
}
