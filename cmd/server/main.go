package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	feeapp "github.com/erp/schoolfees/internal/application/fee"
	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/infrastructure/auth"
	"github.com/erp/schoolfees/internal/infrastructure/cache"
	"github.com/erp/schoolfees/internal/infrastructure/config"
	"github.com/erp/schoolfees/internal/infrastructure/export"
	"github.com/erp/schoolfees/internal/infrastructure/logger"
	"github.com/erp/schoolfees/internal/infrastructure/payment"
	"github.com/erp/schoolfees/internal/infrastructure/persistence"
	"github.com/erp/schoolfees/internal/infrastructure/persistence/models"
	"github.com/erp/schoolfees/internal/infrastructure/roster"
	"github.com/erp/schoolfees/internal/infrastructure/telemetry"
	"github.com/erp/schoolfees/internal/interfaces/http/handler"
	"github.com/erp/schoolfees/internal/interfaces/http/middleware"
	"github.com/erp/schoolfees/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//go:generate swag init -g cmd/server/main.go -o docs --parseInternal

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			School Fees API
//	@version		1.0
//	@description	Fee catalog, student fee ledger and payment reconciliation
//	@BasePath		/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		TimeFormat:  "2006-01-02T15:04:05.000Z07:00",
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Env,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting school fees service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Tracing
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.ConfigFrom(cfg.Telemetry, version), log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled: cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBName:  cfg.Database.DBName,
	}, log)
	if err := dbTracing.Register(db.DB); err != nil {
		return err
	}
	if db.Driver == "sqlite" {
		// local development databases are not managed by cmd/migrate
		if err := db.DB.AutoMigrate(
			&models.MasterFeeModel{},
			&models.FeeStructureModel{},
			&models.AppliedFeeDiscountModel{},
			&models.StudentFeeModel{},
			&models.FeePaymentModel{},
			&models.ErrorLogModel{},
		); err != nil {
			return err
		}
	}
	log.Info("Database connected", zap.String("driver", db.Driver))

	// Redis (optional)
	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, using in-memory stores", zap.Error(err))
		} else {
			redisClient = client
			defer client.Close()
		}
	}
	stores := cache.NewStores(cfg.Cache, redisClient, log)
	defer func() {
		_ = stores.Close()
	}()

	var revocations auth.RevocationList = auth.NewInMemoryRevocationList()
	if redisClient != nil {
		revocations = auth.NewRedisRevocationList(redisClient)
	}

	// External collaborators
	metrics := telemetry.NewFeeMetrics()
	rosterClient, err := roster.NewClient(roster.Config{
		BaseURL:     cfg.Roster.BaseURL,
		Timeout:     cfg.Roster.Timeout,
		ForwardAuth: cfg.Roster.ForwardAuth,
	}, roster.WithObserver(metrics), roster.WithLogger(log))
	if err != nil {
		return err
	}
	gateway, err := payment.NewGateway(cfg.Gateway, log)
	if err != nil {
		return err
	}

	// Repositories
	gdb := db.DB
	txScope := persistence.NewGormTransactionScope(gdb)
	structures := persistence.NewGormFeeStructureRepository(gdb)
	discounts := persistence.NewGormDiscountRepository(gdb)
	studentFees := persistence.NewGormStudentFeeRepository(gdb)
	payments := persistence.NewGormFeePaymentRepository(gdb)

	// Application services
	settings := settingsFrom(cfg)
	catalogSvc := feeapp.NewCatalogService(feeapp.CatalogServiceConfig{
		MasterFees: persistence.NewGormMasterFeeRepository(gdb),
		Structures: structures,
		StudentFee: studentFees,
		Roster:     rosterClient,
		Logger:     log,
	})
	discountSvc := feeapp.NewDiscountService(feeapp.DiscountServiceConfig{
		Structures: structures,
		Discounts:  discounts,
		StudentFee: studentFees,
		Roster:     rosterClient,
		LevelCache: stores.YearLevels,
		Settings:   settings,
		Logger:     log,
	})
	studentFeeSvc := feeapp.NewStudentFeeService(feeapp.StudentFeeServiceConfig{
		TxScope:    txScope,
		Roster:     rosterClient,
		Gateway:    gateway,
		LevelCache: stores.YearLevels,
		Settings:   settings,
		Metrics:    metrics,
		Logger:     log,
	})
	paymentSvc := feeapp.NewPaymentService(feeapp.PaymentServiceConfig{
		TxScope:     txScope,
		Payments:    payments,
		Roster:      rosterClient,
		Gateway:     gateway,
		Idempotency: stores.Idempotency,
		Settings:    settings,
		Metrics:     metrics,
		Logger:      log,
	})
	reportSvc := feeapp.NewReportService(feeapp.ReportServiceConfig{
		StudentFee: studentFees,
		Structures: structures,
		Discounts:  discounts,
		Payments:   payments,
		Roster:     rosterClient,
		LevelCache: stores.YearLevels,
		Renderer:   export.NewRenderer(cfg.App.Name, settings.Currency),
		Settings:   settings,
		Logger:     log,
	})

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	var webhookLimiter *middleware.RateLimiter
	if cfg.HTTP.WebhookRateLimit > 0 {
		webhookLimiter = middleware.NewRateLimiter(cfg.HTTP.WebhookRateLimit, time.Minute)
		go webhookLimiter.Run(ctx)
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	jwtCfg := middleware.DefaultJWTConfig(auth.NewValidator(cfg.JWT))
	jwtCfg.Revocations = revocations
	jwtCfg.Logger = log

	var metricsForRouter *telemetry.FeeMetrics
	if cfg.Telemetry.MetricsEnabled {
		metricsForRouter = metrics
	}

	errorLogs := persistence.NewGormErrorLogRepository(gdb)
	engine := router.New(router.Config{
		Logger:         log,
		HTTP:           cfg.HTTP,
		Tracing:        middleware.TracingConfig{ServiceName: cfg.Telemetry.ServiceName, Enabled: tp.IsEnabled()},
		JWT:            jwtCfg,
		Metrics:        metricsForRouter,
		MetricsPath:    cfg.Telemetry.MetricsPath,
		ErrorLogs:      errorLogs,
		WebhookLimiter: webhookLimiter,
		Swagger:        cfg.Swagger,
	}, router.Handlers{
		System:      handler.NewSystemHandler(cfg.App.Name, version, sqlDB),
		Catalog:     handler.NewFeeCatalogHandler(catalogSvc),
		Discounts:   handler.NewDiscountHandler(discountSvc),
		StudentFees: handler.NewStudentFeeHandler(studentFeeSvc, paymentSvc, reportSvc),
		FeePayments: handler.NewFeePaymentHandler(paymentSvc),
		Webhook:     handler.NewWebhookHandler(paymentSvc),
		Admin:       handler.NewAdminHandler(stores.YearLevels),
		ErrorLogs:   handler.NewErrorLogHandler(errorLogs),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
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

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("Server exited")
	return nil
}

// settingsFrom maps the fees config section onto the service settings.
// Config always carries the billing rules, so a configured zero penalty
// switches the penalty off.
func settingsFrom(cfg *config.Config) feeapp.Settings {
	penalty := cfg.Fees.TuitionPenalty
	return feeapp.Settings{
		TuitionPenalty: &penalty,
		Policy: &fee.DiscountPolicy{
			ApplyCeiling:  cfg.Fees.ApplyCeiling,
			UpdateCeiling: cfg.Fees.UpdateCeiling,
		},
		Currency:          cfg.Fees.Currency,
		ReceiptMaxRetries: cfg.Fees.ReceiptMaxRetries,
		YearLevelTTL:      cfg.Cache.YearLevelTTL,
	}
}
