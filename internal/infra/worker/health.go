package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthServer provides HTTP endpoints for health checks.
//   - /health: Liveness probe (always returns 200 OK)
//   - /health/ready: Readiness probe (200 while the scheduler runs and the
//     last successful fetch is recent enough, 503 otherwise)
//
// The server supports graceful shutdown via context cancellation.
type HealthServer struct {
	addr       string
	logger     *slog.Logger
	isReady    atomic.Bool
	lastFetch  atomic.Int64 // unix nanoseconds, 0 until the first success
	staleAfter time.Duration
	now        func() time.Time
	server     *http.Server
}

type healthResponse struct {
	Status    string     `json:"status"`
	LastFetch *time.Time `json:"last_fetch,omitempty"`
}

// NewHealthServer creates a health check server listening on addr.
// The server starts as not ready.
func NewHealthServer(addr string, logger *slog.Logger) *HealthServer {
	return &HealthServer{
		addr:   addr,
		logger: logger,
		now:    time.Now,
	}
}

// WithStaleAfter makes readiness fail when no fetch cycle has succeeded for
// d. Zero disables the check.
func (h *HealthServer) WithStaleAfter(d time.Duration) *HealthServer {
	h.staleAfter = d
	return h
}

// Handler returns the HTTP handler serving both probes.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleLiveness)
	mux.HandleFunc("/health/ready", h.handleReadiness)
	return mux
}

// Start serves until ctx is cancelled, then shuts down with a 5-second
// grace period and returns http.ErrServerClosed.
func (h *HealthServer) Start(ctx context.Context) error {
	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		h.logger.Info("health server starting", slog.String("addr", h.addr))
		if err := h.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		h.logger.Info("health server shutting down")
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("health server shutdown failed", slog.Any("error", err))
			return err
		}
		h.logger.Info("health server stopped")
		return http.ErrServerClosed

	case err := <-errChan:
		if err != http.ErrServerClosed {
			h.logger.Error("health server failed", slog.Any("error", err))
		}
		return err
	}
}

// SetReady sets the readiness state reported by /health/ready.
func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("health server readiness changed", slog.Bool("ready", ready))
}

// MarkFetched records the completion time of a successful fetch cycle.
func (h *HealthServer) MarkFetched(at time.Time) {
	h.lastFetch.Store(at.UnixNano())
}

func (h *HealthServer) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	h.write(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *HealthServer) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if ns := h.lastFetch.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		resp.LastFetch = &t
	}

	switch {
	case !h.isReady.Load():
		resp.Status = "not ready"
		h.write(w, http.StatusServiceUnavailable, resp)
	case h.staleAfter > 0 && resp.LastFetch != nil && h.now().Sub(*resp.LastFetch) > h.staleAfter:
		resp.Status = "stale"
		h.write(w, http.StatusServiceUnavailable, resp)
	default:
		h.write(w, http.StatusOK, resp)
	}
}

func (h *HealthServer) write(w http.ResponseWriter, code int, resp healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode health response", slog.Any("error", err))
	}
}
