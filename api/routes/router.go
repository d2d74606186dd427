package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/piersideeats/dispatch-backend/api/controllers"
	"github.com/piersideeats/dispatch-backend/api/middleware"
	"github.com/piersideeats/dispatch-backend/internal/dispatch"
	"github.com/piersideeats/dispatch-backend/internal/efficiency"
	"github.com/piersideeats/dispatch-backend/internal/incidents"
	"github.com/piersideeats/dispatch-backend/internal/orders"
	"github.com/piersideeats/dispatch-backend/internal/payments"
	"github.com/piersideeats/dispatch-backend/internal/payouts"
	"github.com/piersideeats/dispatch-backend/internal/riders"
	"github.com/piersideeats/dispatch-backend/pkg/config"
	"github.com/piersideeats/dispatch-backend/pkg/db"
	"github.com/piersideeats/dispatch-backend/pkg/enums"
	"github.com/piersideeats/dispatch-backend/pkg/logger"
	"github.com/piersideeats/dispatch-backend/pkg/maps"
	"github.com/piersideeats/dispatch-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	engine dispatch.Engine,
	ordersSvc orders.Service,
	ridersSvc riders.Service,
	efficiencySvc efficiency.Service,
	paymentsSvc payments.Service,
	payoutsSvc payouts.Service,
	incidentsSvc incidents.Service,
	mapsClient *maps.Client,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	apiPolicy := middleware.NewRateLimitPolicy("api", cfg.RateLimit.Window, cfg.RateLimit.IPLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1/rider", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.RoleRider, logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Use(middleware.RateLimit(apiPolicy, redisClient, logg))

		r.Route("/delivery-requests", func(r chi.Router) {
			r.Get("/", controllers.RiderDeliveryRequests(engine, ordersSvc, logg))
			r.Post("/{offerId}/accept", controllers.RiderAcceptOffer(engine, logg))
			r.Post("/{offerId}/reject", controllers.RiderRejectOffer(engine, logg))
		})

		r.Get("/deliveries", controllers.RiderDeliveries(ordersSvc, logg))
		r.Post("/deliveries/{orderId}/complete", controllers.RiderCompleteDelivery(ordersSvc, logg))
		r.Get("/earnings", controllers.RiderEarnings(paymentsSvc, logg))
		r.Get("/efficiency", controllers.RiderEfficiency(efficiencySvc, logg))
		r.Post("/pause", controllers.RiderPause(ridersSvc, logg))
		r.Post("/resume", controllers.RiderResume(ridersSvc, logg))
		r.Put("/bank-account", controllers.RiderUpdateBankAccount(ridersSvc, logg))
		r.Post("/location", controllers.RiderPushLocation(ridersSvc, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.RoleAdmin, logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Use(middleware.RateLimit(apiPolicy, redisClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateOrder(ordersSvc, logg))
			r.Get("/", controllers.AdminListOrders(ordersSvc, logg))
			r.Get("/{orderId}", controllers.AdminOrderDetail(ordersSvc, logg))
			r.Post("/{orderId}/dispatch", controllers.AdminDispatchOrder(engine, logg))
			r.Post("/{orderId}/assign", controllers.AdminAssignOrder(engine, logg))
			r.Post("/{orderId}/cancel", controllers.AdminCancelOrder(ordersSvc, logg))
			r.Post("/{orderId}/preparation-started", controllers.AdminMarkPreparationStarted(ordersSvc, logg))
		})

		r.Route("/riders", func(r chi.Router) {
			r.Get("/", controllers.AdminListRiders(ridersSvc, logg))
			r.Get("/{riderId}", controllers.AdminRiderDetail(ridersSvc, logg))
			r.Get("/{riderId}/performance", controllers.AdminRiderPerformance(efficiencySvc, paymentsSvc, logg))
			r.Post("/{riderId}/bonus", controllers.AdminAwardBonus(payoutsSvc, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/calculate", controllers.AdminCalculatePayment(paymentsSvc, logg))
			r.Get("/settings", controllers.AdminPaymentSettings(paymentsSvc, logg))
			r.Put("/settings", controllers.AdminUpdatePaymentSettings(paymentsSvc, logg))
		})

		r.Get("/payouts/weekly-report", controllers.AdminWeeklyPayoutReport(payoutsSvc, logg))

		r.Route("/incidents", func(r chi.Router) {
			r.Get("/", controllers.AdminListIncidents(incidentsSvc, logg))
			r.Put("/{incidentId}/resolve", controllers.AdminResolveIncident(incidentsSvc, logg))
		})

		r.Post("/maps/route", controllers.AdminRoutePreview(mapsClient, logg))
	})

	return r
}
