// Package httpapi exposes the pipeline's control surface over HTTP: the
// enabled toggle, the progress record, cancellation, and a markdown export
// of the annotated document.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/domgloss/gloss"
	"github.com/hazyhaar/domgloss/prefs"
)

// Handler serves the control API for one pipeline.
type Handler struct {
	pipeline *gloss.Pipeline
	store    *prefs.Store // nil when the toggle is not persisted
	logger   *slog.Logger
}

// New creates the handler. store may be nil; the toggle then lives only in
// memory.
func New(p *gloss.Pipeline, store *prefs.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{pipeline: p, store: store, logger: logger}
}

// Router builds the chi router for the control API.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/toggle", h.handleToggle)
		r.Post("/cancel", h.handleCancel)
		r.Get("/progress", h.handleProgress)
		r.Get("/export", h.handleExport)
	})
	return r
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	h.pipeline.SetEnabled(req.Enabled)
	if h.store != nil {
		if err := h.store.SetEnabled(r.Context(), req.Enabled); err != nil {
			h.logger.Warn("httpapi: persist toggle", "error", err)
		}
	}
	h.logger.Info("httpapi: toggle", "enabled", req.Enabled)
	writeJSON(w, http.StatusOK, map[string]any{"enabled": h.pipeline.Enabled()})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.pipeline.Cancel()
	if h.store != nil {
		if err := h.store.SetEnabled(r.Context(), false); err != nil {
			h.logger.Warn("httpapi: persist toggle", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
}

func (h *Handler) handleProgress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.pipeline.Progress())
}

func (h *Handler) handleExport(w http.ResponseWriter, _ *http.Request) {
	md, err := h.pipeline.ExportMarkdown()
	if err != nil {
		h.logger.Error("httpapi: export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(md))
}

// Serve runs the API on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, h *Handler) error {
	srv := &http.Server{Addr: addr, Handler: h.Router()}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
