// Package paymentprovider оборачивает SDK платежного провайдера (Stripe).
// Ключ API и секрет подписи webhook передаются при создании клиента,
// глобальное состояние SDK не используется.
package paymentprovider

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v83"
)

// Client инкапсулирует клиент Stripe API и секрет подписи webhook.
type Client struct {
	api           *stripe.Client
	webhookSecret string
}

// NewClient создаёт новый клиент провайдера.
func NewClient(secretKey, webhookSecret string) *Client {
	return &Client{
		api:           stripe.NewClient(secretKey),
		webhookSecret: webhookSecret,
	}
}

// VerifyEvent проверяет подпись webhook-события и возвращает распарсенное
// событие. Подпись пересчитывается по телу запроса с секретом, сравнение
// учитывает допуск по времени провайдера. Непроверенное событие никогда
// не обрабатывается.
func (c *Client) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	const op = "paymentprovider.VerifyEvent"
	event, err := stripe.ConstructEvent(payload, sigHeader, c.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%s: %w", op, err)
	}
	return event, nil
}

// RetrieveCheckoutSession загружает checkout-сессию по идентификатору.
func (c *Client) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	const op = "paymentprovider.RetrieveCheckoutSession"
	session, err := c.api.V1CheckoutSessions.Retrieve(ctx, sessionID, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return session, nil
}

// RetrieveSubscription загружает подписку по идентификатору.
func (c *Client) RetrieveSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	const op = "paymentprovider.RetrieveSubscription"
	sub, err := c.api.V1Subscriptions.Retrieve(ctx, subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// RetrieveCustomer загружает покупателя по идентификатору.
func (c *Client) RetrieveCustomer(ctx context.Context, customerID string) (*stripe.Customer, error) {
	const op = "paymentprovider.RetrieveCustomer"
	cust, err := c.api.V1Customers.Retrieve(ctx, customerID, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cust, nil
}

// CreatePaymentLink создаёт платёжную ссылку для выбранного тарифа.
//
// Идентификатор пользователя кладётся в метаданные сессии под ключом
// cartID — по нему фулфилмент восстановит пользователя. Тот же
// идентификатор записывается в метаданные будущей подписки под ключом
// user_id, чтобы события продления резолвились без дополнительных
// справочников.
func (c *Client) CreatePaymentLink(ctx context.Context, req CreatePaymentLinkRequest) (*CreatePaymentLinkResponse, error) {
	const op = "paymentprovider.CreatePaymentLink"

	params := &stripe.PaymentLinkCreateParams{
		LineItems: []*stripe.PaymentLinkCreateLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		AfterCompletion: &stripe.PaymentLinkCreateAfterCompletionParams{
			Type: stripe.String("hosted_confirmation"),
			HostedConfirmation: &stripe.PaymentLinkCreateAfterCompletionHostedConfirmationParams{
				CustomMessage: stripe.String(fmt.Sprintf(
					"Thank you for subscribing to the %s plan!", req.PlanTitle)),
			},
		},
	}
	params.AddMetadata(MetadataCartID, req.CartID)

	params.SubscriptionData = &stripe.PaymentLinkCreateSubscriptionDataParams{}
	params.SubscriptionData.AddMetadata(MetadataUserID, req.CartID)

	link, err := c.api.V1PaymentLinks.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &CreatePaymentLinkResponse{
		ID:  link.ID,
		URL: link.URL,
	}, nil
}
