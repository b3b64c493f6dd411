// Package entitlement содержит бизнес-логику выдачи и отзыва доступа
// к платформе по событиям платежного провайдера.
//
// Политика обработки ошибок единая для всех входных точек:
//   - «мягкие» промахи резолва (сессия не оплачена, метаданные отсутствуют,
//     пользователь не найден) логируются и считаются штатным исходом —
//     ошибка наружу не возвращается;
//   - сбои провайдера и хранилища возвращаются наружу, чтобы webhook
//     ответил не-2xx и провайдер повторил доставку события.
package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/magabrotheeeer/fulfillment-service/internal/lib/sl"
	"github.com/magabrotheeeer/fulfillment-service/internal/models"
	"github.com/magabrotheeeer/fulfillment-service/internal/paymentprovider"
	"github.com/magabrotheeeer/fulfillment-service/internal/storage/repository"
)

// Repository определяет методы хранилища, нужные логике доступа.
type Repository interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	UpdateUserAccess(ctx context.Context, userID int, hasAccess bool) error
	IsSessionFulfilled(ctx context.Context, sessionID string) (bool, error)
	GrantAccessForSession(ctx context.Context, sessionID string, userID int) error
}

// ProviderClient определяет операции платежного провайдера.
type ProviderClient interface {
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
	RetrieveSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

// EventPublisher публикует события о выдаче и отзыве доступа.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// Event — сообщение о смене доступа, уходящее в очередь уведомлений.
type Event struct {
	UserID     int       `json:"user_id"`
	Action     string    `json:"action"` // granted или revoked
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Service реализует фулфилмент checkout-сессий и обработку событий
// продления подписки.
type Service struct {
	repo      Repository
	provider  ProviderClient
	publisher EventPublisher // может быть nil, публикация тогда отключена
	log       *slog.Logger
}

// New создает новый Service.
func New(repo Repository, provider ProviderClient, publisher EventPublisher, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		provider:  provider,
		publisher: publisher,
		log:       log,
	}
}

// FulfillSession выдаёт доступ по checkout-сессии ровно один раз.
//
// Порядок проверок: журнал исполнений -> статус оплаты -> метаданные
// cartID -> пользователь -> флаг доступа. Запись флага и журнала
// выполняется одной транзакцией.
func (s *Service) FulfillSession(ctx context.Context, sessionID string) (models.FulfillResult, error) {
	const op = "entitlement.FulfillSession"
	log := s.log.With(slog.String("op", op), slog.String("session_id", sessionID))

	fulfilled, err := s.repo.IsSessionFulfilled(ctx, sessionID)
	if err != nil {
		return models.NotFulfilled, fmt.Errorf("%s: %w", op, err)
	}
	if fulfilled {
		log.Info("session already fulfilled, skipping")
		return models.AlreadyFulfilled, nil
	}

	session, err := s.provider.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return models.NotFulfilled, fmt.Errorf("%s: %w", op, err)
	}

	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		log.Info("session is not paid, skipping fulfillment",
			slog.String("payment_status", string(session.PaymentStatus)))
		return models.NotFulfilled, nil
	}

	cartID := ""
	if session.Metadata != nil {
		cartID = session.Metadata[paymentprovider.MetadataCartID]
	}
	if cartID == "" {
		log.Warn("cartID is missing from session metadata, cannot fulfill")
		return models.NotFulfilled, nil
	}

	userID, err := strconv.Atoi(cartID)
	if err != nil {
		log.Error("invalid cartID in session metadata", slog.String("cart_id", cartID))
		return models.NotFulfilled, nil
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			log.Warn("no user found for cartID", slog.Int("user_id", userID))
			return models.NotFulfilled, nil
		}
		return models.NotFulfilled, fmt.Errorf("%s: %w", op, err)
	}

	if user.HasAccess {
		log.Info("user already has access, nothing to do", slog.Int("user_id", userID))
		return models.AlreadyFulfilled, nil
	}

	if err := s.repo.GrantAccessForSession(ctx, sessionID, userID); err != nil {
		return models.NotFulfilled, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user granted access", slog.Int("user_id", userID))
	s.publishEvent(userID, "granted", "checkout session "+sessionID)

	return models.Fulfilled, nil
}

// HandleInvoicePaid обрабатывает успешную оплату счета продления:
// подтверждает (или восстанавливает) доступ пользователя.
func (s *Service) HandleInvoicePaid(ctx context.Context, raw json.RawMessage) error {
	const op = "entitlement.HandleInvoicePaid"
	log := s.log.With(slog.String("op", op))

	invoice, userID, ok, err := s.resolveInvoiceUser(ctx, log, raw)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil
	}
	log = log.With(slog.String("invoice_id", invoice.ID), slog.Int("user_id", userID))

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			log.Warn("no user found for invoice")
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if user.HasAccess {
		log.Info("access already confirmed for invoice")
		return nil
	}

	if err := s.repo.UpdateUserAccess(ctx, userID, true); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user access confirmed for invoice")
	s.publishEvent(userID, "granted", "invoice "+invoice.ID)
	return nil
}

// HandleInvoiceFailed обрабатывает неуспешную оплату счета продления:
// доступ отзывается сразу, без льготного периода.
func (s *Service) HandleInvoiceFailed(ctx context.Context, raw json.RawMessage) error {
	const op = "entitlement.HandleInvoiceFailed"
	log := s.log.With(slog.String("op", op))

	invoice, userID, ok, err := s.resolveInvoiceUser(ctx, log, raw)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil
	}
	log = log.With(slog.String("invoice_id", invoice.ID), slog.Int("user_id", userID))

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			log.Warn("no user found for failed invoice")
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if !user.HasAccess {
		log.Info("user has no access, nothing to revoke")
		return nil
	}

	if err := s.repo.UpdateUserAccess(ctx, userID, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Warn("user access revoked after failed invoice payment")
	s.publishEvent(userID, "revoked", "failed invoice "+invoice.ID)
	return nil
}

// resolveInvoiceUser восстанавливает пользователя из счета: сначала из
// метаданных самого счета, затем из метаданных подписки — туда user_id
// записывается при создании платёжной ссылки. Другие источники
// (например, метаданные покупателя) сервисом не заполняются и потому
// не опрашиваются.
func (s *Service) resolveInvoiceUser(ctx context.Context, log *slog.Logger, raw json.RawMessage) (*stripe.Invoice, int, bool, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(raw, &invoice); err != nil {
		log.Error("failed to unmarshal invoice payload", sl.Err(err))
		return nil, 0, false, nil
	}

	if invoice.Metadata != nil {
		if userIDStr := invoice.Metadata[paymentprovider.MetadataUserID]; userIDStr != "" {
			userID, err := strconv.Atoi(userIDStr)
			if err != nil {
				log.Error("invalid user_id in invoice metadata",
					slog.String("invoice_id", invoice.ID), slog.String("user_id", userIDStr))
				return &invoice, 0, false, nil
			}
			return &invoice, userID, true, nil
		}
	}

	subscriptionID := extractSubscriptionID(raw)
	if subscriptionID == "" {
		log.Warn("could not determine user for invoice: no metadata and no subscription",
			slog.String("invoice_id", invoice.ID))
		return &invoice, 0, false, nil
	}

	sub, err := s.provider.RetrieveSubscription(ctx, subscriptionID)
	if err != nil {
		return &invoice, 0, false, err
	}

	userIDStr := ""
	if sub.Metadata != nil {
		userIDStr = sub.Metadata[paymentprovider.MetadataUserID]
	}
	if userIDStr == "" {
		log.Warn("user_id is missing from subscription metadata",
			slog.String("invoice_id", invoice.ID), slog.String("subscription_id", subscriptionID))
		return &invoice, 0, false, nil
	}

	userID, err := strconv.Atoi(userIDStr)
	if err != nil {
		log.Error("invalid user_id in subscription metadata",
			slog.String("subscription_id", subscriptionID), slog.String("user_id", userIDStr))
		return &invoice, 0, false, nil
	}
	return &invoice, userID, true, nil
}

// extractSubscriptionID достаёт идентификатор подписки из сырого JSON счета:
// поле subscription приходит либо строкой, либо развернутым объектом.
func extractSubscriptionID(raw json.RawMessage) string {
	var rawData map[string]any
	if err := json.Unmarshal(raw, &rawData); err != nil {
		return ""
	}
	switch v := rawData["subscription"].(type) {
	case string:
		return v
	case map[string]any:
		if id, ok := v["id"].(string); ok {
			return id
		}
	}
	return ""
}

// publishEvent отправляет событие о смене доступа; сбой публикации
// не влияет на результат обработки.
func (s *Service) publishEvent(userID int, action, reason string) {
	if s.publisher == nil {
		return
	}
	event := Event{
		UserID:     userID,
		Action:     action,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(action, event); err != nil {
		s.log.Warn("failed to publish entitlement event",
			slog.Int("user_id", userID), slog.String("action", action), sl.Err(err))
	}
}
