// Package app wires every collaborator together and runs the control
// plane in one of its two modes: "api" serves the HTTP surface, "worker"
// runs the periodic sweeps (token refresh, override cleanup, billing
// reconciliation) that have no request to answer to. Grounded on the teacher's internal/app wiring shape: one Run entry
// point, a mode switch, collaborators constructed once and threaded down.
package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/joshrkay/shopify-analytics-controlplane/internal/audit"
	"github.com/joshrkay/shopify-analytics-controlplane/internal/config"
	"github.com/joshrkay/shopify-analytics-controlplane/internal/httpserver"
	"github.com/joshrkay/shopify-analytics-controlplane/internal/platform"
	"github.com/joshrkay/shopify-analytics-controlplane/internal/telemetry"
	"github.com/joshrkay/shopify-analytics-controlplane/pkg/billing"
	"github.com/joshrkay/shopify-analytics-controlplane/pkg/connector"
	"github.com/joshrkay/shopify-analytics-controlplane/pkg/dashboard"
	"github.com/joshrkay/shopify-analytics-controlplane/pkg/dataset"
	"github.com/joshrkay/shopify-analytics-controlplane/pkg/entitlement"
	"github.com/joshrkay/shopify-analytics-controlplane/pkg/freshness"
	"github.com/joshrkay/shopify-analytics-controlplane/pkg/governance"
	"github.com/joshrkay/shopify-analytics-controlplane/pkg/notify"
	"github.com/joshrkay/shopify-analytics-controlplane/pkg/tenant"
	"github.com/joshrkay/shopify-analytics-controlplane/pkg/vault"
)

// collaborators holds every wired component, regardless of mode, so api
// and worker mode can share construction without duplicating it.
type collaborators struct {
	auditWriter  *audit.Writer
	tenantGuard  *tenant.Guard
	entitlement  *entitlement.Engine
	vaultManager *vault.Manager
	connectorReg *connector.Registrar
	billingPipe  *billing.Pipeline
	freshnessMon *freshness.Monitor
	datasetMgr   *dataset.Manager
	dashboardMgr *dashboard.Manager
	notifyReg    *notify.Registry

	approvalGate   *governance.ApprovalGate
	metricResolver *governance.MetricVersionResolver
	guardrails     *governance.Guardrails
	rollbackOrch   *governance.Orchestrator
	predeployValid *governance.Validator
}

// Run loads collaborators and dispatches to the requested mode. ctx is
// cancelled by the caller's signal handling (SIGINT/SIGTERM).
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	if cfg.OTLPEndpoint != "" {
		shutdown, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.ServiceVersion)
		if err != nil {
			return fmt.Errorf("initializing tracer: %w", err)
		}
		defer func() { _ = shutdown(ctx) }()
	}

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer rdb.Close()

	metricsReg := telemetry.NewMetricsRegistry()

	cs, err := build(ctx, cfg, logger, pool, rdb)
	if err != nil {
		return err
	}

	cs.auditWriter.Start(ctx)
	defer cs.auditWriter.Close()

	switch cfg.Mode {
	case "worker":
		return runWorker(ctx, logger, cs)
	default:
		return runAPI(ctx, cfg, logger, cs, metricsReg, pool, rdb)
	}
}

// build constructs every collaborator. Order matters: audit must exist
// before anything that logs through it, the entitlement engine before
// billing (which invalidates its cache), and governance's handler/check
// closures last, since they close over the managers above them.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client) (*collaborators, error) {
	auditWriter, err := buildAuditWriter(ctx, cfg, logger, pool)
	if err != nil {
		return nil, err
	}

	tenantStore := tenant.NewPostgresStore()
	claimsResolver := tenant.NewHeaderClaimsResolver()
	tenantGuard := tenant.NewGuard(pool, tenantStore, claimsResolver, auditWriter, logger)

	planCatalog, err := entitlement.LoadPlanCatalog(cfg.PlanConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading plan catalog: %w", err)
	}
	entitlementCache := entitlement.NewRedisCache(rdb, logger)
	entitlementStore := entitlement.NewPostgresStore()
	entitlementEngine := entitlement.NewEngine(pool, entitlementStore, entitlementStore, planCatalog, entitlementCache, nil)

	vaultManager, err := buildVaultManager(cfg, pool, logger)
	if err != nil {
		return nil, err
	}

	connectorReg := &connector.Registrar{Pool: pool, Store: connector.NewPostgresStore(), Audit: auditWriter}

	billingPipe := billing.NewPipeline(pool, billing.NewPostgresStore(), entitlementEngine, auditWriter)

	notifyReg := notify.NewRegistry()
	if cfg.SlackWebhookURL != "" {
		notifyReg.Register(notify.NewSlackProvider(cfg.SlackWebhookURL))
	}

	freshnessThresholds, err := freshness.LoadThresholds(cfg.FreshnessSLAConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading freshness SLA config: %w", err)
	}
	freshnessMon := freshness.NewMonitor(pool, freshness.NewPostgresStore(), auditWriter, notifyReg, freshnessThresholds)

	datasetMgr := dataset.NewManager(pool, dataset.NewPostgresStore())
	dashboardMgr := dashboard.NewManager(pool, dashboard.NewPostgresStore(), cfg.DefaultMaxDashboards)

	changeApprovals, err := governance.LoadChangeApprovals(cfg.ChangeApprovalsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading change approvals config: %w", err)
	}
	approvalGate := governance.NewApprovalGate(changeApprovals, auditWriter)

	metricVersions, err := governance.LoadMetricVersions(cfg.MetricVersionsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading metric versions config: %w", err)
	}
	metricResolver := governance.NewMetricVersionResolver(metricVersions)

	aiRestrictions, err := governance.LoadAIRestrictions(cfg.AIRestrictionsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading AI restrictions config: %w", err)
	}
	guardrails, err := governance.NewGuardrails(aiRestrictions, auditWriter)
	if err != nil {
		return nil, fmt.Errorf("constructing guardrails: %w", err)
	}
	guardrails.Notify = notifyReg

	rollbackAuthorizedRoles, err := governance.LoadRollbackConfig(cfg.RollbackConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading rollback config: %w", err)
	}
	rollbackOrch := governance.NewOrchestrator(
		rollbackHandlers(dashboardMgr, datasetMgr),
		rollbackVerifyChecks(pool, tenantStore),
		rollbackAuthorizedRoles,
		auditWriter,
	)

	preDeployCategories, err := governance.LoadPreDeployValidation(cfg.PreDeployConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading pre-deploy validation config: %w", err)
	}
	predeployValid := governance.NewValidator(preDeployCategories, preDeployChecks(pool))

	return &collaborators{
		auditWriter:    auditWriter,
		tenantGuard:    tenantGuard,
		entitlement:    entitlementEngine,
		vaultManager:   vaultManager,
		connectorReg:   connectorReg,
		billingPipe:    billingPipe,
		freshnessMon:   freshnessMon,
		datasetMgr:     datasetMgr,
		dashboardMgr:   dashboardMgr,
		notifyReg:      notifyReg,
		approvalGate:   approvalGate,
		metricResolver: metricResolver,
		guardrails:     guardrails,
		rollbackOrch:   rollbackOrch,
		predeployValid: predeployValid,
	}, nil
}

func buildAuditWriter(ctx context.Context, cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool) (*audit.Writer, error) {
	var fallback audit.FallbackSink
	if cfg.AuditFallbackBucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading aws config for audit fallback: %w", err)
		}
		fallback = &audit.S3FallbackSink{
			Client: s3.NewFromConfig(awsCfg),
			Bucket: cfg.AuditFallbackBucket,
			Prefix: cfg.AuditFallbackPrefix,
		}
	}
	return audit.NewWriter(pool, logger, fallback), nil
}

func buildVaultManager(cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (*vault.Manager, error) {
	key, err := base64.StdEncoding.DecodeString(cfg.VaultKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("decoding vault key: %w", err)
	}
	cipher, err := vault.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("constructing vault cipher: %w", err)
	}
	exchanger := &vault.PlatformExchanger{
		GoogleClientID:     cfg.GoogleOAuthClientID,
		GoogleClientSecret: cfg.GoogleOAuthClientSecret,
		MetaAppID:          cfg.MetaAppID,
		MetaAppSecret:      cfg.MetaAppSecret,
	}
	return vault.NewManager(pool, vault.NewPostgresStore(), cipher, exchanger, logger), nil
}

// runAPI mounts every domain handler and serves HTTP until ctx is
// cancelled.
func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, cs *collaborators, metricsReg *prometheus.Registry, pool *pgxpool.Pool, rdb *redis.Client) error {
	srv := httpserver.NewServer(httpserver.ServerConfig{CORSAllowedOrigins: cfg.CORSAllowedOrigins}, logger, pool, rdb, metricsReg, cs.tenantGuard.Middleware)

	srv.Router.Get("/status", srv.HandleStatus)
	srv.APIRouter.Get("/status", srv.HandleStatus)

	// Billing webhooks are unauthenticated: the provider carries no tenant
	// bearer token, only an HMAC signature over the raw body (spec.md 4.6).
	billingHandler := billing.NewHandler(cs.billingPipe, cfg.BillingWebhookSecret, logger)
	srv.Router.Mount("/webhooks/billing", billingHandler.Routes())

	srv.APIRouter.Mount("/entitlements", entitlement.NewHandler(cs.entitlement, logger).Routes())
	srv.APIRouter.Mount("/dashboards", dashboard.NewHandler(cs.dashboardMgr, logger).Routes())
	srv.APIRouter.Mount("/connections", connector.NewHandler(cs.connectorReg, logger).Routes())
	srv.APIRouter.Mount("/sync-runs", freshness.NewHandler(cs.freshnessMon, logger).Routes())
	srv.APIRouter.Mount("/datasets", dataset.NewHandler(cs.datasetMgr, logger).Routes())
	srv.APIRouter.Mount("/governance", governance.NewAPIHandler(cs.approvalGate, cs.metricResolver, cs.guardrails, cs.rollbackOrch, cs.predeployValid, cs.entitlement, logger).Routes())

	return httpserver.Run(ctx, cfg.ListenAddr(), srv, logger)
}

// runWorker runs the periodic sweeps that keep cross-cutting state
// converged: token refresh, expired-override cleanup, billing
// reconciliation. Each runs on its own ticker so a slow sweep never starves
// the others. There is no freshness sweep: freshness is evaluated only when
// a sync status is reported through the freshness handler.
func runWorker(ctx context.Context, logger *slog.Logger, cs *collaborators) error {
	tickers := []struct {
		name     string
		interval time.Duration
		run      func(ctx context.Context)
	}{
		{"token_refresh", 15 * time.Minute, func(ctx context.Context) {
			refreshed, skipped, failed := cs.vaultManager.ProactiveRefresh(ctx)
			logger.Info("token refresh sweep complete", "refreshed", refreshed, "skipped", skipped, "failed", failed)
		}},
		{"override_cleanup", time.Hour, func(ctx context.Context) {
			n, err := cs.entitlement.CleanupExpired(ctx)
			if err != nil {
				logger.Error("override cleanup sweep failed", "error", err)
				return
			}
			logger.Info("override cleanup sweep complete", "tenants_affected", n)
		}},
		{"billing_reconciliation", 6 * time.Hour, func(ctx context.Context) {
			corrected, err := cs.billingPipe.Reconcile(ctx, providerSubscriptionStatus)
			if err != nil {
				logger.Error("billing reconciliation sweep failed", "error", err)
				return
			}
			logger.Info("billing reconciliation sweep complete", "corrected", corrected)
		}},
	}

	for _, t := range tickers {
		go runTicker(ctx, t.interval, t.run)
	}

	<-ctx.Done()
	logger.Info("worker shutting down")
	return nil
}

func runTicker(ctx context.Context, interval time.Duration, run func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

// providerSubscriptionStatus is the billing reconciliation sweep's
// provider-status lookup. Hitting the real payment provider's API for
// every non-terminal subscription is the production implementation; it is
// left as a documented gap rather than a fabricated HTTP client wired to
// no real provider (see DESIGN.md).
func providerSubscriptionStatus(externalSubID string) (billing.Status, bool) {
	return "", false
}

// rollbackHandlers registers the concrete side-effecting actions the
// rollback orchestrator can invoke by name (spec.md 4.8.5). These are not
// config-driven: governance.Orchestrator takes Go closures, and this is
// the one place they're bound to real managers.
func rollbackHandlers(dashboardMgr *dashboard.Manager, datasetMgr *dataset.Manager) map[string]governance.Handler {
	return map[string]governance.Handler{
		"dashboard_restore": func(ctx context.Context, scope governance.RollbackScope, params map[string]any) error {
			dashboardID, err := uuidParam(params, "dashboard_id")
			if err != nil {
				return err
			}
			actorUserID, err := uuidParam(params, "actor_user_id")
			if err != nil {
				return err
			}
			versionNumber, err := intParam(params, "version_number")
			if err != nil {
				return err
			}
			for _, tenantID := range scope.TenantIDs {
				if _, err := dashboardMgr.Restore(ctx, tenantID, dashboardID, actorUserID, versionNumber); err != nil {
					return fmt.Errorf("restoring dashboard %s for tenant %s: %w", dashboardID, tenantID, err)
				}
			}
			return nil
		},
		"dataset_rollback": func(ctx context.Context, scope governance.RollbackScope, params map[string]any) error {
			datasetName, ok := params["dataset_name"].(string)
			if !ok || datasetName == "" {
				return fmt.Errorf("rollback: dataset_rollback requires a dataset_name param")
			}
			for _, tenantID := range scope.TenantIDs {
				if err := datasetMgr.Rollback(ctx, tenantID, datasetName); err != nil {
					return fmt.Errorf("rolling back dataset %s for tenant %s: %w", datasetName, tenantID, err)
				}
			}
			return nil
		},
	}
}

// rollbackVerifyChecks registers the post-rollback verification checks the
// orchestrator's verifying state runs before marking a run completed.
// VerifyCheck only receives the scope (no action params), so the one
// universally applicable check is confirming every in-scope tenant still
// resolves to an active tenant row — a rollback that left a tenant
// suspended or missing must never be reported as verified.
func rollbackVerifyChecks(pool *pgxpool.Pool, tenantStore tenant.Store) map[string]governance.VerifyCheck {
	return map[string]governance.VerifyCheck{
		"tenants_still_active": func(ctx context.Context, scope governance.RollbackScope) (bool, error) {
			for _, tenantID := range scope.TenantIDs {
				t, err := tenantStore.GetByID(ctx, pool, tenantID)
				if err != nil {
					return false, fmt.Errorf("verify: loading tenant %s: %w", tenantID, err)
				}
				if t.Status != tenant.StatusActive {
					return false, nil
				}
			}
			return true, nil
		},
	}
}

// preDeployChecks registers the deterministic checks the pre-deploy
// validator runs before a governed change may ship (spec.md 4.8.4).
// database_connectivity is registered under category "infra"; the
// validator runs it only when pre_deploy_validation.yaml configures an
// "infra" category and otherwise reports it as skipped. Task-specific checks
// (query-plan regression, metric-definition diffing) depend on tooling
// this control plane doesn't own and are left to the CI pipeline that
// invokes this validator.
func preDeployChecks(pool *pgxpool.Pool) []governance.RegisteredCheck {
	return []governance.RegisteredCheck{
		{
			Name:     "database_connectivity",
			Category: "infra",
			Run: func(ctx context.Context) (measured, threshold any, ok bool, err error) {
				pingErr := pool.Ping(ctx)
				return pingErr == nil, true, pingErr == nil, nil
			},
		},
	}
}

func uuidParam(params map[string]any, key string) (uuid.UUID, error) {
	raw, ok := params[key].(string)
	if !ok || raw == "" {
		return uuid.Nil, fmt.Errorf("rollback: missing %s param", key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("rollback: invalid %s param: %w", key, err)
	}
	return id, nil
}

func intParam(params map[string]any, key string) (int, error) {
	switch v := params[key].(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("rollback: missing or invalid %s param", key)
	}
}
