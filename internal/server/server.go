// Package server exposes the document store over a read-only HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/felixgeelhaar/ragchat/internal/observe"
	"github.com/felixgeelhaar/ragchat/internal/store"
)

// Index is the part of the document store the API reads from.
type Index interface {
	Query(ctx context.Context, text string, topN int) ([]store.Result, error)
	Get(id string) (string, bool)
	Count() int
}

// Server is the HTTP server for the search API.
type Server struct {
	index   Index
	obs     *observe.Observer
	metrics *observe.Metrics
	router  chi.Router
	server  *http.Server
}

// New creates a server with its routes registered.
func New(index Index, obs *observe.Observer, metrics *observe.Metrics) *Server {
	s := &Server{
		index:   index,
		obs:     observe.OrDiscard(obs),
		metrics: metrics,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(s.logRequests)

	r.Get("/search", s.handleSearch)
	r.Get("/documents/{id}", s.handleGetDocument)
	r.Get("/healthz", s.handleHealth)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}
	s.router = r
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.obs.Log().Info().Str("addr", addr).Msg("Starting server")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.obs.Log().Info().Msg("Shutting down server")
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.obs.Log().Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("duration", time.Since(start).String()).
			Msg("request")
	})
}
