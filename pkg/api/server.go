package api

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"
)

// Config controls the HTTP front end.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	QueryTimeout    time.Duration // per-request deadline attached to the context
	ShutdownTimeout time.Duration
	MaxInFlight     int
	CORSOrigin      string
}

// DefaultConfig returns sensible defaults for the given listen address.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:            addr,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		QueryTimeout:    2 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxInFlight:     runtime.NumCPU() * 2,
	}
}

// Server is the HTTP front end over a loaded index.
type Server struct {
	cfg      Config
	inFlight chan struct{}
	srv      *http.Server
}

// NewServer wires the query routes and middleware.
func NewServer(cfg Config, handlers *Handlers) *Server {
	s := &Server{
		cfg:      cfg,
		inFlight: make(chan struct{}, cfg.MaxInFlight),
	}

	routes := map[string]http.HandlerFunc{
		"GET /api/v1/nearest": handlers.HandleNearest,
		"GET /api/v1/locate":  handlers.HandleLocate,
		"GET /api/v1/health":  handlers.HandleHealth,
		"GET /api/v1/stats":   handlers.HandleStats,
	}
	mux := http.NewServeMux()
	for pattern, h := range routes {
		mux.HandleFunc(pattern, s.instrument(h))
	}

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Run serves until SIGTERM/SIGINT, then drains in-flight requests within the
// shutdown timeout.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("query API listening on %s", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Printf("caught %s, draining requests", sig)
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.srv.Shutdown(ctx)
	}
}

// instrument wraps one handler with response headers, load shedding, panic
// recovery, the per-request deadline and an access log line.
func (s *Server) instrument(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")
		if s.cfg.CORSOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.cfg.CORSOrigin)
		}

		// Shed load instead of queueing: index queries are CPU-and-disk
		// bound, so piling up waiters only grows latency.
		select {
		case s.inFlight <- struct{}{}:
			defer func() { <-s.inFlight }()
		default:
			w.Header().Set("Retry-After", "1")
			http.Error(w, `{"error":"service_unavailable"}`, http.StatusServiceUnavailable)
			return
		}

		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic in %s: %v", r.URL.Path, rec)
				http.Error(w, `{"error":"internal_error"}`, http.StatusInternalServerError)
			}
		}()

		// Index queries run to completion (they have no cancellation
		// points); the deadline still bounds response writing and anything
		// downstream that does honor the context.
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.QueryTimeout)
		defer cancel()

		start := time.Now()
		handler(w, r.WithContext(ctx))
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start).Round(time.Microsecond))
	}
}
