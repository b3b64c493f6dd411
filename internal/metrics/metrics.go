// Package metrics регистрирует Prometheus-счётчики сервиса фулфилмента.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEventsTotal считает принятые webhook-события по типу и исходу.
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_webhook_events_total",
		Help: "Number of processed webhook events by type and outcome.",
	}, []string{"type", "outcome"})

	// FulfillmentsTotal считает попытки фулфилмента по результату.
	FulfillmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_sessions_total",
		Help: "Number of checkout session fulfillment attempts by result.",
	}, []string{"result"})

	// PaymentLinksTotal считает запросы на создание платёжных ссылок.
	PaymentLinksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_payment_links_total",
		Help: "Number of payment link creation requests by outcome.",
	}, []string{"outcome"})
)
