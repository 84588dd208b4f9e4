package commands

import (
	"context"
	"fmt"

	"github.com/mzurek/divtrack/internal/audit"
	"github.com/mzurek/divtrack/internal/completion"
	"github.com/mzurek/divtrack/internal/external/eodhd"
	"github.com/mzurek/divtrack/internal/external/fmp"
	"github.com/mzurek/divtrack/internal/external/stooq"
	"github.com/mzurek/divtrack/internal/market"
	"github.com/mzurek/divtrack/internal/pipeline"
	"github.com/mzurek/divtrack/internal/quota"
	"github.com/mzurek/divtrack/internal/router"
	"github.com/mzurek/divtrack/internal/scheduler"
	"github.com/mzurek/divtrack/internal/service"
	"github.com/mzurek/divtrack/internal/splits"
	"github.com/mzurek/divtrack/internal/store"
	"github.com/mzurek/divtrack/pkg/config"
	"github.com/mzurek/divtrack/pkg/database"
	"github.com/mzurek/divtrack/pkg/httputil"
	"github.com/mzurek/divtrack/pkg/logger"
	"github.com/mzurek/divtrack/pkg/redis"
)

// app bundles everything the commands need
type app struct {
	cfg       *config.Config
	logger    *logger.Logger
	db        *database.DB
	redis     *redis.Client
	service   *service.Service
	scheduler *scheduler.Scheduler
	ledger    *quota.Ledger
}

// buildApp wires the full dependency graph: config, database with
// migrations, providers behind the quota ledger, router, completion
// orchestrator, pipeline jobs and the service facade.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := store.Migrate(ctx, db.Pool); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, continuing without shared cache")
		redisClient = nil
	}

	instruments := store.NewInstrumentRepository(db.Pool)
	prices := store.NewPriceRepository(db.Pool)
	dividends := store.NewDividendRepository(db.Pool)
	splitRepo := store.NewSplitRepository(db.Pool)
	quotaRepo := store.NewQuotaRepository(db.Pool)
	jobLogs := store.NewJobLogRepository(db.Pool)
	taxRates := store.NewTaxRateRepository(db.Pool)

	ledger, err := quota.NewLedger(ctx, quotaRepo, quota.DefaultSpecs(), log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init quota ledger: %w", err)
	}

	httpClient := httputil.New(log, httputil.RetryConfig{
		MaxAttempts: cfg.MaxRetries,
		DelayBase:   cfg.RetryDelayBase,
	})

	providers := []market.Provider{
		fmp.NewClient(httpClient.ForProvider(market.ProviderPrimary, ledger), cfg.Providers.PrimaryAPIKey, log),
		eodhd.NewClient(httpClient.ForProvider(market.ProviderBackup, ledger), cfg.Providers.BackupAPIKey, log),
		stooq.NewClient(httpClient.ForProvider(market.ProviderFallback, ledger), log),
	}

	var sharedCache *redis.Cache
	if redisClient != nil && redisClient.Enabled() {
		sharedCache = redis.NewCache(redisClient, "divtrack")
	}
	cache := router.NewCache(cfg.CacheTTL, sharedCache)
	rt := router.New(providers, ledger, cache, log)

	registry := splits.NewRegistry(db.Pool, splitRepo, prices, dividends, log)
	auditor := audit.New(cfg.MaxHistoryYears, cfg.DailyPricesWindowDays)
	orchestrator := completion.New(rt, prices, dividends, auditor, cfg.MaxHistoryYears, cfg.DailyPricesWindowDays, log)

	sched := scheduler.New(log, cfg.SchedulerLocation())
	priceJob := pipeline.NewPriceRefreshJob(rt, instruments, prices, dividends, jobLogs, log)
	reconcileJob := pipeline.NewReconciliationJob(
		rt, orchestrator, registry, instruments, prices, dividends, jobLogs,
		cfg.DailyPricesWindowDays, cfg.SystemLogRetentionDays, cfg.DividendCheckIntervalHours, log,
	)
	if err := sched.AddJob(priceJob); err != nil {
		db.Close()
		return nil, err
	}
	if err := sched.AddJob(reconcileJob); err != nil {
		db.Close()
		return nil, err
	}

	svc := service.New(service.Deps{
		Instruments:  instruments,
		Prices:       prices,
		Dividends:    dividends,
		JobLogs:      jobLogs,
		TaxRates:     taxRates,
		Router:       rt,
		Orchestrator: orchestrator,
		Registry:     registry,
		Ledger:       ledger,
		Scheduler:    sched,
		Logger:       log,
	})

	return &app{
		cfg:       cfg,
		logger:    log,
		db:        db,
		redis:     redisClient,
		service:   svc,
		scheduler: sched,
		ledger:    ledger,
	}, nil
}

// close releases held resources
func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.db.Close()
}
