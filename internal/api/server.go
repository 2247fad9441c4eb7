// Package api — тонкий HTTP-адаптер над engine.Service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/fraudprofile/internal/anomaly"
	"github.com/xela07ax/fraudprofile/internal/domain"
	"github.com/xela07ax/fraudprofile/internal/engine"
)

// ProfileService — то, что HTTP-слою нужно от движка.
type ProfileService interface {
	Process(ctx context.Context, ev domain.Event) (engine.Outcome, error)
	Profile(ctx context.Context, userID string) (*domain.Profile, error)
	RiskAssessment(ctx context.Context, userID string) (domain.RiskAssessment, error)
	Retrain(ctx context.Context) (engine.RetrainReport, error)
}

// ModelCatalog — описание банка моделей для /admin/models и /healthz.
type ModelCatalog interface {
	State() anomaly.State
	Models() ([]anomaly.ModelInfo, time.Time)
}

// RetrainBroadcaster рассылает команду переобучения всем инстансам (Redis Pub/Sub).
// Возвращает число получателей.
type RetrainBroadcaster func(ctx context.Context, requestID string) (int64, error)

type Options struct {
	RateLimit float64 // запросов в секунду на инстанс, 0 - без лимита
	RateBurst int
	Gatherer  prometheus.Gatherer
	Broadcast RetrainBroadcaster // nil - переобучение синхронно в этом инстансе
}

type Server struct {
	router    *chi.Mux
	svc       ProfileService
	models    ModelCatalog
	broadcast RetrainBroadcaster
	gatherer  prometheus.Gatherer
	limiter   *rate.Limiter
	logger    *zap.Logger
}

func NewServer(svc ProfileService, models ModelCatalog, opts Options, logger *zap.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		svc:       svc,
		models:    models,
		broadcast: opts.Broadcast,
		gatherer:  opts.Gatherer,
		logger:    logger.Named("http-api"),
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.NewRegistry()
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	// --- 2. Служебные роуты (без лимита) ---
	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// --- 3. Профили и события ---
	r.Group(func(r chi.Router) {
		r.Use(engine.TracingMiddleware)
		r.Use(s.rateLimit)

		r.Route("/profile/{user_id}", func(r chi.Router) {
			r.Get("/", s.getProfile)
			r.Get("/risk", s.getRisk)
			r.Post("/{kind}", s.postProfileEvent) // login | transaction | session | feature
		})
		r.Post("/events/{kind}", s.postEvent)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/retrain", s.retrain)
			r.Get("/models", s.listModels)
		})
	})
}

// ServeHTTP позволяет использовать Server как стандартный http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", Code: "RATE_LIMITED"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
