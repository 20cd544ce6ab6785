// Package api exposes the stores over a local HTTP surface.
//
// The server is a thin boundary: every endpoint maps onto one store or
// migrator operation, and no durability logic lives here.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chatlog/chatlog/internal/observability"
	"github.com/chatlog/chatlog/internal/storage"
)

// Server wires HTTP routes to the stores.
type Server struct {
	addr       string
	listLimit  int
	defSession string
	messages   *storage.MessageStore
	keychain   *storage.Keychain
	log        *observability.Logger
	metrics    *observability.MetricsCollector
	started    time.Time
}

// New creates a server listening on addr. listLimit bounds message listings
// when the client does not pass one; defSession is the session assigned to
// appends that carry none.
func New(addr string, listLimit int, defSession string, messages *storage.MessageStore, keychain *storage.Keychain, log *observability.Logger, metrics *observability.MetricsCollector) *Server {
	if listLimit <= 0 {
		listLimit = 100
	}
	if defSession == "" {
		defSession = storage.DefaultSession
	}
	return &Server{
		addr:       addr,
		listLimit:  listLimit,
		defSession: defSession,
		messages:   messages,
		keychain:   keychain,
		log:        log,
		metrics:    metrics,
		started:    time.Now(),
	}
}

// Handler builds the chi router. Exposed separately so tests can drive it
// through httptest without a listener.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.countRequests)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", s.handleHealth)
		api.Post("/messages", s.handleAppend)
		api.Get("/messages", s.handleList)
		api.Get("/stats", s.handleStats)
		api.Post("/sessions", s.handleNewSession)

		api.Route("/keychain", func(kc chi.Router) {
			kc.Get("/", s.handleKeychainKeys)
			kc.Get("/{key}", s.handleKeychainGet)
			kc.Put("/{key}", s.handleKeychainSet)
			kc.Delete("/{key}", s.handleKeychainDelete)
		})
	})

	return r
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", s.addr, err)
	}
	s.log.Info("http api listening", observability.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: serve: %w", err)
	}
	return nil
}

// countRequests tracks request volume and logs each request.
func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Increment(observability.CounterHTTPRequests)
		s.log.Debug("http request",
			observability.String("method", r.Method),
			observability.String("path", r.URL.Path),
			observability.String("request_id", middleware.GetReqID(r.Context())),
		)
		next.ServeHTTP(w, r)
	})
}
