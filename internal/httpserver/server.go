package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"k8s.io/client-go/kubernetes"

	"github.com/wisbric/kubeops/internal/auth"
	"github.com/wisbric/kubeops/internal/config"
)

// Server holds the HTTP server dependencies. It mounts the unauthenticated
// health/metrics surface itself; chat and internal-status handlers are
// mounted externally onto ChatRouter/InternalRouter by the app wiring.
type Server struct {
	Router              *chi.Mux
	ChatRouter          chi.Router // authenticated /chat sub-router
	InternalRouter      chi.Router // authenticated /internal sub-router (any caller)
	InternalAdminRouter chi.Router // authenticated, admin-only /internal sub-router
	Logger              *slog.Logger
	DB             *pgxpool.Pool
	Redis          *redis.Client
	K8s            kubernetes.Interface
	Metrics        *prometheus.Registry
	startedAt      time.Time
}

// NewServer creates an HTTP server with middleware and health/metrics
// endpoints. oidcAuth may be nil when OIDC is not configured (dev tokens
// will be the only authentication path then).
func NewServer(
	cfg *config.Config,
	logger *slog.Logger,
	db *pgxpool.Pool,
	rdb *redis.Client,
	k8s kubernetes.Interface,
	metricsReg *prometheus.Registry,
	oidcAuth *auth.OIDCAuthenticator,
	devTokens *auth.DevTokenStore,
	limiter *auth.RateLimiter,
) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    logger,
		DB:        db,
		Redis:     rdb,
		K8s:       k8s,
		Metrics:   metricsReg,
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/readyz", s.handleReadyz)
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	s.Router.Route("/chat", func(r chi.Router) {
		r.Use(auth.Middleware(oidcAuth, devTokens, limiter, logger))
		r.Use(auth.RequireAuth)
		s.ChatRouter = r
	})

	s.Router.Route("/internal", func(r chi.Router) {
		r.Use(auth.Middleware(oidcAuth, devTokens, limiter, logger))
		r.Use(auth.RequireAuth)
		s.InternalRouter = r

		r.Group(func(admin chi.Router) {
			admin.Use(auth.RequireAdminClaim(cfg.AdminSubjects))
			s.InternalAdminRouter = admin
		})
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports readiness across Postgres, Redis, and the
// Kubernetes API — the three external dependencies the control plane
// cannot function without.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	type checkResult struct {
		Name   string `json:"name"`
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}

	var checks []checkResult
	allOK := true

	if err := s.DB.Ping(ctx); err != nil {
		s.Logger.Error("readiness check: database ping failed", "error", err)
		checks = append(checks, checkResult{Name: "database", Status: "fail", Error: err.Error()})
		allOK = false
	} else {
		checks = append(checks, checkResult{Name: "database", Status: "ok"})
	}

	if err := s.Redis.Ping(ctx).Err(); err != nil {
		s.Logger.Error("readiness check: redis ping failed", "error", err)
		checks = append(checks, checkResult{Name: "redis", Status: "fail", Error: err.Error()})
		allOK = false
	} else {
		checks = append(checks, checkResult{Name: "redis", Status: "ok"})
	}

	if _, err := s.K8s.Discovery().ServerVersion(); err != nil {
		s.Logger.Error("readiness check: kubernetes API unreachable", "error", err)
		checks = append(checks, checkResult{Name: "kubernetes", Status: "fail", Error: err.Error()})
		allOK = false
	} else {
		checks = append(checks, checkResult{Name: "kubernetes", Status: "ok"})
	}

	status := "ready"
	httpStatus := http.StatusOK
	if !allOK {
		status = "unavailable"
		httpStatus = http.StatusServiceUnavailable
	}

	Respond(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// StartedAt returns the process start time, used to compute uptime for
// /internal/health.
func (s *Server) StartedAt() time.Time {
	return s.startedAt
}
