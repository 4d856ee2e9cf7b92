package web

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hpungsan/tagline/internal/config"
	"github.com/hpungsan/tagline/internal/errors"
	"github.com/hpungsan/tagline/internal/logging"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// NewServer creates and configures the HTTP server for the sentence store.
func NewServer(db *sql.DB, cfg *config.Config, version, bind string, port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           NewHandler(db, cfg, version),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(db *sql.DB, cfg *config.Config, version string) http.Handler {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	renderer := NewRenderer(version)
	h := &Handlers{
		db:       db,
		renderer: renderer,
	}

	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /healthz", h.HandleHealth)
	mux.HandleFunc("POST /sentences", h.HandleCreate)
	mux.HandleFunc("POST /sentences/revalidate", h.HandleRevalidate)
	mux.HandleFunc("POST /sentences/treat-all", h.HandleTreatAll)
	mux.HandleFunc("GET /sentences/stats", h.HandleStats)
	mux.HandleFunc("GET /sentences/{id}", h.HandleGet)
	mux.HandleFunc("PUT /sentences/{id}", h.HandleSave)
	mux.HandleFunc("PATCH /sentences/{id}", h.HandleSave)
	mux.HandleFunc("DELETE /sentences/{id}", h.HandleDelete)
	mux.HandleFunc("POST /sentences/{id}/treat", h.HandleTreat(true))
	mux.HandleFunc("POST /sentences/{id}/untreat", h.HandleTreat(false))
	mux.HandleFunc("POST /sentences/{id}/validate", h.HandleValidity(true))
	mux.HandleFunc("POST /sentences/{id}/invalidate", h.HandleValidity(false))

	handler := requireToken(cfg.ServerToken, renderer, mux)
	handler = securityHeaders(handler)
	return logging.CombinedMiddleware(handler)
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// requireToken enforces a bearer token on every route but /healthz.
// An empty token disables the check.
func requireToken(token string, renderer *Renderer, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	want := []byte("Bearer " + token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="tagline"`)
			renderer.renderError(w, r, errors.NewUnauthorized())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logging.ServerStartup("http", srv.Addr)

	if strings.HasPrefix(srv.Addr, "0.0.0.0") || strings.HasPrefix(srv.Addr, "[::]") || strings.HasPrefix(srv.Addr, ":") {
		logging.Warn("server is binding to all interfaces and may be accessible from the network", "addr", srv.Addr)
	}

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logging.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
