// Package server is the HTTP gateway in front of the job queue.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"remoteq/internal/core"
	"remoteq/internal/storage"
)

// Server exposes the core service over HTTP. The routes and JSON field names
// match what the CREATOR web client sends.
type Server struct {
	svc     *core.Service
	results *storage.ResultStorage
	router  *chi.Mux
}

// NewServer builds the router. results may be nil, which disables /results.
func NewServer(svc *core.Service, results *storage.ResultStorage) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	s := &Server{svc: svc, results: results, router: r}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/", s.handleOverview)
	s.router.Get("/target_boards", s.handleTargetBoards)
	s.router.Post("/enqueue", s.handleEnqueue)
	s.router.Post("/delete", s.handleDelete)
	s.router.Post("/position", s.handlePosition)
	s.router.Post("/status", s.handleStatus)
	s.router.Get("/results/{id}", s.handleResult)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.router.Handle("/metrics", promhttp.Handler())
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Failed to shut down gateway")
		}
	}()

	log.WithField("addr", addr).Info("Gateway listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			log.WithFields(log.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start),
				"request_id": middleware.GetReqID(r.Context()),
			}).Debug("Request completed")
		}()

		next.ServeHTTP(ww, r)
	})
}

// cors allows any origin; the web client is served from a different host.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
