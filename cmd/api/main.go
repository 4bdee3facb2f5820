package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/griffinshaw/dealbrief-backend/api/controllers"
	"github.com/griffinshaw/dealbrief-backend/api/routes"
	"github.com/griffinshaw/dealbrief-backend/internal/analysis"
	"github.com/griffinshaw/dealbrief-backend/internal/auth"
	"github.com/griffinshaw/dealbrief-backend/internal/bounties"
	"github.com/griffinshaw/dealbrief-backend/internal/exchange"
	"github.com/griffinshaw/dealbrief-backend/internal/ledger"
	"github.com/griffinshaw/dealbrief-backend/internal/notifications"
	"github.com/griffinshaw/dealbrief-backend/internal/reports"
	"github.com/griffinshaw/dealbrief-backend/internal/users"
	"github.com/griffinshaw/dealbrief-backend/pkg/auth/session"
	"github.com/griffinshaw/dealbrief-backend/pkg/config"
	"github.com/griffinshaw/dealbrief-backend/pkg/db"
	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
	"github.com/griffinshaw/dealbrief-backend/pkg/metrics"
	"github.com/griffinshaw/dealbrief-backend/pkg/migrate"
	"github.com/griffinshaw/dealbrief-backend/pkg/outbox"
	"github.com/griffinshaw/dealbrief-backend/pkg/redis"
	"github.com/griffinshaw/dealbrief-backend/pkg/storage/gcs"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	requireResource(ctx, logg, "gcs", err)

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	requireResource(ctx, logg, "session manager", err)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "ledger service", err)

	reportsService, err := reports.NewService(reports.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "reports service", err)

	bountiesService, err := bounties.NewService(bounties.NewRepository(dbClient.DB()), ledgerService, dbClient, outboxService, cfg.Credits)
	requireResource(ctx, logg, "bounties service", err)

	var provider analysis.Provider
	if cfg.Gemini.APIKey != "" {
		gemini, err := analysis.NewGeminiProvider(ctx, cfg.Gemini)
		requireResource(ctx, logg, "gemini provider", err)
		defer func() {
			if err := gemini.Close(); err != nil {
				logg.Error(ctx, "error closing gemini client", err)
			}
		}()
		provider = gemini
	} else {
		logg.Warn(ctx, "gemini api key missing, battlecards use the fallback generator")
	}

	analysisService, err := analysis.NewService(provider, logg)
	requireResource(ctx, logg, "analysis service", err)

	exchangeService, err := exchange.NewService(
		dbClient,
		reportsService,
		ledgerService,
		exchange.NewDownloadRepository(dbClient.DB()),
		bountiesService,
		analysisService,
		gcsClient,
		outboxService,
		metrics.NewExchangeMetrics(prometheus.DefaultRegisterer),
		logg,
		exchange.Config{
			Bucket:         cfg.GCS.BucketName,
			DownloadURLTTL: cfg.GCS.DownloadURLExpiry,
			MaxUploadBytes: cfg.Upload.MaxUploadBytes(),
			Credits:        cfg.Credits,
		},
	)
	requireResource(ctx, logg, "exchange service", err)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	requireResource(ctx, logg, "auth service", err)

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		TxRunner: dbClient,
		UserRepoFactory: func(tx *gorm.DB) auth.UserStore {
			return users.NewRepository(tx)
		},
		LedgerFactory: func(tx *gorm.DB) auth.LedgerRecorder {
			return ledgerService.WithTx(tx)
		},
		Outbox:         outboxService,
		PasswordConfig: cfg.Password,
		Credits:        cfg.Credits,
	})
	requireResource(ctx, logg, "register service", err)

	adminRegisterService, err := auth.NewAdminRegisterService(auth.AdminRegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	requireResource(ctx, logg, "admin register service", err)

	refreshService, err := auth.NewRefreshService(auth.RefreshServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	requireResource(ctx, logg, "refresh service", err)

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	requireResource(ctx, logg, "notifications service", err)

	readiness := controllers.ReadinessChecks{
		DB:      dbClient,
		Redis:   redisClient,
		Storage: gcsClient,
	}

	router := routes.NewRouter(
		cfg,
		logg,
		redisClient,
		readiness,
		sessionManager,
		authService,
		registerService,
		adminRegisterService,
		refreshService,
		exchangeService,
		reportsService,
		bountiesService,
		ledgerService,
		notificationsService,
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(runCtx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(runCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(runCtx, "graceful shutdown failed", err)
		}
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
