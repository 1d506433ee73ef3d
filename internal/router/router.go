package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shaibs3/PriceTracker/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Handler registers its routes on the shared router
type Handler interface {
	RegisterRoutes(router *mux.Router, logger *zap.Logger)
}

// Router wires handlers, middleware and the operational endpoints
type Router struct {
	mux      *mux.Router
	limiter  *rate.Limiter
	requests metric.Int64Counter
	duration metric.Float64Histogram
	logger   *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(limiter *rate.Limiter, tel *telemetry.Telemetry, logger *zap.Logger, handlers []Handler) *Router {
	logger = logger.Named("router")

	requests, err := tel.Meter.Int64Counter("http_requests",
		metric.WithDescription("HTTP requests served"))
	if err != nil {
		logger.Warn("failed to create request counter", zap.Error(err))
	}
	duration, err := tel.Meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request latency"), metric.WithUnit("s"))
	if err != nil {
		logger.Warn("failed to create request histogram", zap.Error(err))
	}

	r := &Router{
		mux:      mux.NewRouter(),
		limiter:  limiter,
		requests: requests,
		duration: duration,
		logger:   logger,
	}

	r.mux.Handle("/metrics", tel.Handler()).Methods("GET")
	r.mux.HandleFunc("/health", handleHealth).Methods("GET")

	// handler routes share a subrouter so the operational endpoints skip the limiter
	api := r.mux.NewRoute().Subrouter()
	api.Use(r.rateLimit, r.instrument)
	for _, h := range handlers {
		h.RegisterRoutes(api, logger)
	}
	return r
}

// rateLimit rejects API requests once the limiter is exhausted
func (r *Router) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.limiter != nil && !r.limiter.Allow() {
			r.logger.Warn("rate limit exceeded", zap.String("path", req.URL.Path))
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, req)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (r *Router) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)

		route := req.URL.Path
		if cur := mux.CurrentRoute(req); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		attrs := metric.WithAttributes(
			attribute.String("method", req.Method),
			attribute.String("route", route),
			attribute.Int("status", rec.status),
		)
		if r.requests != nil {
			r.requests.Add(req.Context(), 1, attrs)
		}
		if r.duration != nil {
			r.duration.Record(req.Context(), time.Since(start).Seconds(), attrs)
		}
		r.logger.Debug("request served",
			zap.String("method", req.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}

func handleHealth(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ServeHTTP implements the http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// CreateServer returns an http.Server serving this router on addr
func (r *Router) CreateServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
}
