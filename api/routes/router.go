package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/griffinshaw/dealbrief-backend/api/controllers"
	"github.com/griffinshaw/dealbrief-backend/api/middleware"
	"github.com/griffinshaw/dealbrief-backend/internal/auth"
	"github.com/griffinshaw/dealbrief-backend/internal/bounties"
	"github.com/griffinshaw/dealbrief-backend/internal/exchange"
	"github.com/griffinshaw/dealbrief-backend/internal/ledger"
	"github.com/griffinshaw/dealbrief-backend/internal/notifications"
	"github.com/griffinshaw/dealbrief-backend/internal/reports"
	"github.com/griffinshaw/dealbrief-backend/pkg/auth/session"
	"github.com/griffinshaw/dealbrief-backend/pkg/config"
	"github.com/griffinshaw/dealbrief-backend/pkg/logger"
	"github.com/griffinshaw/dealbrief-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	readiness controllers.ReadinessChecks,
	sessionChecker session.AccessSessionChecker,
	authService auth.Service,
	registerService auth.RegisterService,
	adminRegisterService auth.AdminRegisterService,
	refreshService auth.RefreshService,
	exchangeService exchange.Service,
	reportsService reports.Service,
	bountiesService bounties.Service,
	ledgerService ledger.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Post("/validate", controllers.PublicValidate(logg))
		r.Get("/reports", controllers.PublicSearchReports(reportsService, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(registerService, logg))
		r.Post("/logout", controllers.AuthLogout(authService, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(refreshService, logg))
	})

	if !cfg.App.IsProd() {
		r.Route("/api/admin/v1/auth", func(r chi.Router) {
			r.Post("/register", controllers.AdminRegister(adminRegisterService, logg))
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionChecker, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/reports", func(r chi.Router) {
			r.Post("/", controllers.UploadReport(exchangeService, cfg.Upload, logg))
			r.Get("/", controllers.ListMyReports(reportsService, logg))
			r.Get("/{reportId}", controllers.GetReport(reportsService, logg))
			r.Post("/{reportId}/download", controllers.DownloadReport(exchangeService, logg))
			r.Get("/{reportId}/file", controllers.ReportFileURL(exchangeService, logg))
			r.Delete("/{reportId}", controllers.DeleteReport(exchangeService, logg))
		})

		r.Route("/v1/bounties", func(r chi.Router) {
			r.Post("/", controllers.CreateBounty(bountiesService, logg))
			r.Get("/", controllers.ListMyBounties(bountiesService, logg))
			r.Get("/open", controllers.ListOpenBounties(bountiesService, logg))
			r.Post("/{bountyId}/cancel", controllers.CancelBounty(bountiesService, logg))
		})

		r.Route("/v1/credits", func(r chi.Router) {
			r.Get("/balance", controllers.CreditBalance(ledgerService, logg))
			r.Get("/stats", controllers.CreditStats(ledgerService, logg))
			r.Get("/history", controllers.CreditHistory(ledgerService, logg))
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionChecker, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Get("/ping", controllers.AdminPing())
		r.Delete("/v1/reports/{reportId}", controllers.DeleteReport(exchangeService, logg))
	})

	return r
}
