// Package paymentwebhook принимает webhook-события платежного провайдера,
// проверяет подпись и направляет события в сервис доступа.
package paymentwebhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/stripe/stripe-go/v83"

	"github.com/magabrotheeeer/fulfillment-service/internal/http/response"
	"github.com/magabrotheeeer/fulfillment-service/internal/lib/sl"
	"github.com/magabrotheeeer/fulfillment-service/internal/metrics"
	"github.com/magabrotheeeer/fulfillment-service/internal/models"
)

// maxBodyBytes ограничивает размер тела webhook-запроса.
const maxBodyBytes = int64(65536)

// dedupTTL — срок жизни отметки об обработанном событии в кеше.
const dedupTTL = 24 * time.Hour

// EventVerifier проверяет подпись webhook-события.
type EventVerifier interface {
	VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

// EntitlementService обрабатывает события, влияющие на доступ пользователя.
type EntitlementService interface {
	FulfillSession(ctx context.Context, sessionID string) (models.FulfillResult, error)
	HandleInvoicePaid(ctx context.Context, raw json.RawMessage) error
	HandleInvoiceFailed(ctx context.Context, raw json.RawMessage) error
}

// EventCache хранит отметки об уже обработанных событиях.
type EventCache interface {
	SetIfAbsent(key string, expiration time.Duration) (bool, error)
	Invalidate(key string) error
}

// Handler обрабатывает POST /webhooks/stripe.
type Handler struct {
	log      *slog.Logger
	verifier EventVerifier
	service  EntitlementService
	cache    EventCache // может быть nil, дедупликация тогда отключена
}

// New создает новый Handler.
func New(log *slog.Logger, verifier EventVerifier, service EntitlementService, cache EventCache) *Handler {
	return &Handler{
		log:      log,
		verifier: verifier,
		service:  service,
		cache:    cache,
	}
}

// ServeHTTP обрабатывает HTTP-запрос webhook-события.
// @Summary Обработать webhook платежного провайдера
// @Description Проверяет подпись события и выдает или отзывает доступ пользователя
// @Tags payment
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Подпись события"
// @Success 200 {object} map[string]string
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /webhooks/stripe [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to read request body"))
		return
	}

	event, err := h.verifier.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Error("webhook signature verification failed", sl.Err(err))
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "signature_failed").Inc()
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	log = log.With(
		slog.String("event_id", event.ID),
		slog.String("event_type", string(event.Type)),
	)
	log.Info("webhook event verified")

	dedupKey := "webhook:event:" + event.ID
	if h.cache != nil {
		fresh, err := h.cache.SetIfAbsent(dedupKey, dedupTTL)
		if err != nil {
			log.Warn("event dedup cache unavailable, continuing", sl.Err(err))
		} else if !fresh {
			log.Info("duplicate event delivery, skipping")
			metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), "duplicate").Inc()
			render.JSON(w, r, map[string]string{"status": "success"})
			return
		}
	}

	if err := h.processEvent(r.Context(), log, event); err != nil {
		// Снимаем отметку, чтобы повторная доставка не была отброшена кешем.
		if h.cache != nil {
			if invErr := h.cache.Invalidate(dedupKey); invErr != nil {
				log.Warn("failed to invalidate event dedup key", sl.Err(invErr))
			}
		}
		log.Error("failed to process webhook event", sl.Err(err))
		metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), "error").Inc()
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to process event"))
		return
	}

	metrics.WebhookEventsTotal.WithLabelValues(string(event.Type), "ok").Inc()
	render.JSON(w, r, map[string]string{"status": "success"})
}

// processEvent направляет событие в сервис доступа по его типу.
// Неизвестные типы подтверждаются без обработки, чтобы провайдер
// не копил повторные доставки.
func (h *Handler) processEvent(ctx context.Context, log *slog.Logger, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			log.Error("failed to unmarshal checkout session payload", sl.Err(err))
			return nil
		}
		result, err := h.service.FulfillSession(ctx, session.ID)
		if err != nil {
			return err
		}
		metrics.FulfillmentsTotal.WithLabelValues(string(result)).Inc()
		return nil

	case "invoice.payment_succeeded":
		return h.service.HandleInvoicePaid(ctx, event.Data.Raw)

	case "invoice.payment_failed":
		return h.service.HandleInvoiceFailed(ctx, event.Data.Raw)

	case "subscription_schedule.created", "subscription_schedule.completed":
		log.Info("subscription schedule event acknowledged")
		return nil

	default:
		log.Info("unhandled event type, acknowledging")
		return nil
	}
}
