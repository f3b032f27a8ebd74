// Package debughttp serves metrics and a read-only view of the module
// registry and inspection surface over HTTP.
package debughttp

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	hclog "github.com/hashicorp/go-hclog"

	"github.com/snailos/snail/inspect"
	"github.com/snailos/snail/internal/log"
	"github.com/snailos/snail/internal/metrics"
	"github.com/snailos/snail/registry"
)

// Module is the JSON view of a registry entry.
type Module struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Fault string `json:"fault,omitempty"`
}

func moduleView(e registry.Entry) Module {
	m := Module{ID: string(e.ID), State: e.State.String()}
	if e.Fault != nil {
		m.Fault = e.Fault.Error()
	}
	return m
}

// New returns the debug router.
func New(surface *inspect.Surface, reg *registry.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/debug/inspect", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, surface.Names())
	})

	r.Get("/debug/modules", func(w http.ResponseWriter, req *http.Request) {
		entries := reg.Entries()
		out := make([]Module, 0, len(entries))
		for _, e := range entries {
			out = append(out, moduleView(e))
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Get("/debug/modules/{id}", func(w http.ResponseWriter, req *http.Request) {
		e, ok := reg.Lookup(registry.ModuleID(chi.URLParam(req, "id")))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "module not registered"})
			return
		}
		writeJSON(w, http.StatusOK, moduleView(e))
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Serve runs h on addr until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler, logger hclog.Logger) error {
	logger = log.Named(logger, "debughttp")

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("debug server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
