// Package app wires the control plane's components — policy gate, queue,
// mutex, Kubernetes adapter, worker, execution state registry, and the
// HTTP/Slack front ends — into a single running process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wisbric/kubeops/internal/audit"
	"github.com/wisbric/kubeops/internal/auth"
	"github.com/wisbric/kubeops/internal/bootstrap"
	"github.com/wisbric/kubeops/internal/config"
	"github.com/wisbric/kubeops/internal/httpserver"
	"github.com/wisbric/kubeops/internal/platform"
	"github.com/wisbric/kubeops/internal/telemetry"
	"github.com/wisbric/kubeops/pkg/chatapi"
	"github.com/wisbric/kubeops/pkg/execstate"
	"github.com/wisbric/kubeops/pkg/k8sop"
	"github.com/wisbric/kubeops/pkg/mutex"
	"github.com/wisbric/kubeops/pkg/policy"
	"github.com/wisbric/kubeops/pkg/queue"
	"github.com/wisbric/kubeops/pkg/slack"
	"github.com/wisbric/kubeops/pkg/worker"
)

// fanoutSink broadcasts one lifecycle phase to every configured
// AuditSink (the durable Postgres writer and, if enabled, the Slack
// result notifier) without making either wait on the other.
type fanoutSink struct {
	sinks []worker.AuditSink
}

func (f *fanoutSink) Log(phase, executionID, commandID, userID, detail string) {
	for _, s := range f.sinks {
		s.Log(phase, executionID, commandID, userID, detail)
	}
}

// Run reads configuration, connects to infrastructure, and starts the
// control plane: exactly one worker (enforced by bootstrap.Guard) plus an
// HTTP server exposing /chat, /internal/status, /internal/health, and,
// when Slack credentials are configured, the Slack front end.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	namespace, err := k8sop.ResolveNamespace(cfg.NamespaceOverride)
	if err != nil {
		return fmt.Errorf("resolving namespace: %w", err)
	}

	logger.Info("starting kubeops",
		"namespace", namespace, "deployment", k8sop.TargetDeployment, "listen", cfg.ListenAddr())

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	k8sClient, err := k8sop.NewClientset(cfg.KubeconfigPath)
	if err != nil {
		return fmt.Errorf("building kubernetes client: %w", err)
	}

	metricsReg := telemetry.NewMetricsRegistry()

	// --- Core control plane ---

	state := execstate.New()
	q := queue.New(state)
	fifo := mutex.New()
	adapter := k8sop.New(k8sClient, namespace, k8sop.TargetDeployment, time.Duration(cfg.AdapterTimeoutSeconds)*time.Second)
	policyGate := policy.NewGate(cfg.FreeQuota, cfg.AdminSubjects)

	auditWriter := audit.NewWriter(db, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	slackIdentities, err := slack.ParseIdentityMap(cfg.SlackUserMap)
	if err != nil {
		return fmt.Errorf("parsing SLACK_USER_MAP: %w", err)
	}
	slackNotifier := slack.NewNotifier(cfg.SlackBotToken, cfg.SlackResultChannel, logger)

	sink := &fanoutSink{sinks: []worker.AuditSink{auditWriter, slackNotifier}}

	gate := chatapi.New(policyGate, q, adapter, state, sink, telemetry.GateMetrics{}, logger)
	w := worker.New(q, fifo, adapter, state, sink, telemetry.WorkerMetrics{}, logger)

	// bootstrap.Guard is what makes "exactly one worker per process" hold
	// even under re-entrant wiring (hot reload, a duplicate Run call);
	// see internal/bootstrap.
	guard := bootstrap.NewGuard()
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	guard.StartWorker(workerCtx, w)

	// --- HTTP surface ---

	devTokens, err := auth.ParseDevTokens(cfg.DevTokens)
	if err != nil {
		return fmt.Errorf("parsing KUBEOPS_DEV_TOKENS: %w", err)
	}

	var oidcAuth *auth.OIDCAuthenticator
	if cfg.OIDCIssuerURL != "" && cfg.OIDCClientID != "" {
		oidcAuth, err = auth.NewOIDCAuthenticator(ctx, cfg.OIDCIssuerURL, cfg.OIDCClientID)
		if err != nil {
			return fmt.Errorf("initializing OIDC authenticator: %w", err)
		}
		logger.Info("OIDC authentication enabled", "issuer", cfg.OIDCIssuerURL)
	} else {
		logger.Info("OIDC authentication disabled (OIDC_ISSUER_URL not set), dev tokens only")
	}

	rateLimiter := auth.NewRateLimiter(rdb, cfg.AuthRateLimitMax, time.Duration(cfg.AuthRateLimitWindow)*time.Second)

	srv := httpserver.NewServer(cfg, logger, db, rdb, k8sClient, metricsReg, oidcAuth, devTokens, rateLimiter)

	httpserver.MountChat(srv, gate)
	httpserver.MountInternalStatus(srv, state)
	httpserver.MountInternalHealth(srv, state)

	if slackNotifier.IsEnabled() || cfg.SlackSigningSecret != "" {
		slackHandler := slack.NewHandler(gate, slackIdentities, slackNotifier, logger, cfg.SlackSigningSecret)
		srv.Router.Mount("/slack", slackHandler.Routes())
		logger.Info("slack front end enabled")
	} else {
		logger.Info("slack front end disabled (SLACK_BOT_TOKEN/SLACK_SIGNING_SECRET not set)")
	}

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down", "phase", "system")
	case err := <-errCh:
		if err != nil {
			cancelWorker()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutting down http server", "error", err)
	}

	// Stop intake and give the in-flight command (if any) up to 5s to
	// finish; no new command begins once cancelWorker has fired.
	cancelWorker()
	if err := w.GracefulShutdown(5 * time.Second); err != nil {
		logger.Warn("graceful shutdown: worker did not report idle in time", "error", err)
	}

	return nil
}
