package fulfillment

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/fulfillment-service/internal/cache"
	"github.com/magabrotheeeer/fulfillment-service/internal/config"
	"github.com/magabrotheeeer/fulfillment-service/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/fulfillment-service/internal/http/handlers/health"
	"github.com/magabrotheeeer/fulfillment-service/internal/http/handlers/payment/paymentlink"
	"github.com/magabrotheeeer/fulfillment-service/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/fulfillment-service/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fulfillment-service/internal/paymentprovider"
	entitlementservice "github.com/magabrotheeeer/fulfillment-service/internal/services/entitlement"
	userservice "github.com/magabrotheeeer/fulfillment-service/internal/services/user"
	"github.com/magabrotheeeer/fulfillment-service/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(
	r chi.Router,
	logger *slog.Logger,
	cfg *config.Config,
	db *repository.Storage,
	cacheRedis *cache.Cache,
	providerClient *paymentprovider.Client,
	entitlementSvc *entitlementservice.Service,
	userSvc *userservice.Service,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	// Webhook-маршрут без ограничения частоты: повторными доставками
	// управляет провайдер.
	var eventCache paymentwebhook.EventCache
	if cacheRedis != nil {
		eventCache = cacheRedis
	}
	r.Post("/webhooks/stripe", paymentwebhook.New(logger, providerClient, entitlementSvc, eventCache).ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(logger, 5, 10))
		r.Post("/register", register.New(logger, userSvc).ServeHTTP)
		r.Post("/payment-links", paymentlink.New(logger, db, providerClient, cfg.Plans).ServeHTTP)
	})

	r.Get("/health", health.New(logger, db).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
