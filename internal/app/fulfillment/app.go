// Package fulfillment собирает зависимости сервиса фулфилмента и
// запускает HTTP-сервер.
package fulfillment

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/fulfillment-service/internal/cache"
	"github.com/magabrotheeeer/fulfillment-service/internal/config"
	"github.com/magabrotheeeer/fulfillment-service/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/fulfillment-service/internal/lib/sl"
	"github.com/magabrotheeeer/fulfillment-service/internal/migrations"
	"github.com/magabrotheeeer/fulfillment-service/internal/paymentprovider"
	entitlementservice "github.com/magabrotheeeer/fulfillment-service/internal/services/entitlement"
	userservice "github.com/magabrotheeeer/fulfillment-service/internal/services/user"
	"github.com/magabrotheeeer/fulfillment-service/internal/storage/repository"
)

// App хранит собранные зависимости и HTTP-сервер.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	rabbit *amqp.Connection
}

// New собирает приложение: хранилище, миграции, кеш, провайдер,
// брокер событий и маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		// Дедупликация событий — оптимизация; источник истины — журнал
		// исполнений в Postgres. Без Redis сервис продолжает работать.
		logger.Warn("redis is unavailable, event dedup disabled", sl.Err(err))
		cacheRedis = nil
	}

	var rabbitConn *amqp.Connection
	var publisher *rabbitmq.Publisher
	if cfg.RabbitConnection.URL != "" {
		rabbitConn, err = rabbitmq.Connect(cfg.RabbitConnection.URL, cfg.RabbitConnection.Retries, cfg.RabbitConnection.RetryDelay)
		if err != nil {
			return nil, err
		}
		ch, err := rabbitmq.SetupChannel(rabbitConn, rabbitmq.GetEntitlementQueues())
		if err != nil {
			return nil, err
		}
		publisher = rabbitmq.NewPublisher(ch)
	} else {
		logger.Info("rabbitmq url is empty, entitlement events disabled")
	}

	providerClient := paymentprovider.NewClient(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)

	var eventPublisher entitlementservice.EventPublisher
	if publisher != nil {
		eventPublisher = publisher
	}
	entitlementSvc := entitlementservice.New(db, providerClient, eventPublisher, logger)
	userSvc := userservice.New(db, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, db, cacheRedis, providerClient, entitlementSvc, userSvc)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		rabbit: rabbitConn,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if a.rabbit != nil {
			if closeErr := a.rabbit.Close(); closeErr != nil {
				a.logger.Warn("failed to close rabbitmq connection", sl.Err(closeErr))
			}
		}
		a.db.DB.Close()
		return err
	}
}
