// Package server exposes the store and the question answering pipeline
// over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/carlohamalainen/un-ga-documents-go/rag"
	"github.com/carlohamalainen/un-ga-documents-go/search"
)

// Searcher is the full-text index. It is optional.
type Searcher interface {
	Search(ctx context.Context, q string, size int) (*search.Result, error)
}

type Options struct {
	ConversationTTL time.Duration
	CleanupSchedule string
	RequestTimeout  time.Duration
}

type Server struct {
	db       rag.Querier
	pipeline *rag.Pipeline
	convs    *rag.ConversationStore
	search   Searcher
	opts     Options

	validate *validator.Validate
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	cron     *cron.Cron
}

// New builds a server. pipeline and searcher may be nil, in which case the
// endpoints that need them answer 503.
func New(db rag.Querier, pipeline *rag.Pipeline, searcher Searcher, opts Options) *Server {
	if opts.ConversationTTL <= 0 {
		opts.ConversationTTL = rag.DefaultConversationMaxAge
	}
	if opts.CleanupSchedule == "" {
		opts.CleanupSchedule = "@hourly"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Minute
	}

	s := &Server{
		db:       db,
		pipeline: pipeline,
		convs:    rag.NewConversationStore(),
		search:   searcher,
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unga",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "unga",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		cron: cron.New(),
	}
	s.registry.MustRegister(s.requests, s.duration)
	return s
}

// Conversations is the server's conversation store.
func (s *Server) Conversations() *rag.ConversationStore {
	return s.convs
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))

		r.Post("/query", s.handleQuery)
		r.Post("/text-to-sql", s.handleTextToSQL)
		r.Post("/ask", s.handleAsk)
		r.Post("/summarize", s.handleSummarize)
		r.Get("/search", s.handleSearch)

		r.Get("/conversations/stats", s.handleConversationStats)
		r.Get("/conversations/{id}", s.handleConversation)
		r.Delete("/conversations", s.handleClearConversations)
	})
	return r
}

// observe logs each request and records it in the metrics.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		s.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		s.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// StartCleanup schedules removal of idle conversations.
func (s *Server) StartCleanup() error {
	_, err := s.cron.AddFunc(s.opts.CleanupSchedule, func() {
		s.convs.Cleanup(s.opts.ConversationTTL)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("conversation cleanup scheduled", "schedule", s.opts.CleanupSchedule, "ttl", s.opts.ConversationTTL.String())
	return nil
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if err := s.StartCleanup(); err != nil {
		return err
	}
	defer s.cron.Stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.opts.RequestTimeout + 10*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
