// Package paymentlink выдает платёжные ссылки для оформления подписки.
package paymentlink

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/fulfillment-service/internal/http/response"
	"github.com/magabrotheeeer/fulfillment-service/internal/lib/sl"
	"github.com/magabrotheeeer/fulfillment-service/internal/metrics"
	"github.com/magabrotheeeer/fulfillment-service/internal/models"
	"github.com/magabrotheeeer/fulfillment-service/internal/paymentprovider"
	"github.com/magabrotheeeer/fulfillment-service/internal/storage/repository"
)

// Request — входные данные для создания платёжной ссылки.
type Request struct {
	UserID int    `json:"user_id" validate:"required,min=1"`
	Plan   string `json:"plan" validate:"required"`
}

// UserRepository проверяет существование пользователя.
type UserRepository interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

// ProviderClient создает платёжные ссылки у провайдера.
type ProviderClient interface {
	CreatePaymentLink(ctx context.Context, req paymentprovider.CreatePaymentLinkRequest) (*paymentprovider.CreatePaymentLinkResponse, error)
}

// Handler обрабатывает POST /payment-links.
type Handler struct {
	log      *slog.Logger
	repo     UserRepository
	provider ProviderClient
	plans    map[string]string // название тарифа -> идентификатор цены
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, repo UserRepository, provider ProviderClient, plans map[string]string) *Handler {
	return &Handler{
		log:      log,
		repo:     repo,
		provider: provider,
		plans:    plans,
		validate: validator.New(),
	}
}

// ServeHTTP обрабатывает HTTP-запрос на создание платёжной ссылки.
// @Summary Создать платёжную ссылку
// @Description Выдает ссылку на оплату выбранного тарифа для существующего пользователя
// @Tags payment
// @Accept json
// @Produce json
// @Param request body Request true "Пользователь и тариф"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /payment-links [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.paymentlink"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	log.Info("request body decoded", slog.Any("request", req))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	priceID, ok := h.plans[req.Plan]
	if !ok {
		log.Error("unknown subscription plan", slog.String("plan", req.Plan))
		metrics.PaymentLinksTotal.WithLabelValues("invalid_plan").Inc()
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("Invalid subscription plan"))
		return
	}

	user, err := h.repo.GetUserByID(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			log.Error("user not found", slog.Int("user_id", req.UserID))
			metrics.PaymentLinksTotal.WithLabelValues("user_not_found").Inc()
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		}
		log.Error("failed to look up user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal service error"))
		return
	}

	link, err := h.provider.CreatePaymentLink(r.Context(), paymentprovider.CreatePaymentLinkRequest{
		PriceID:   priceID,
		CartID:    strconv.Itoa(user.ID),
		PlanTitle: req.Plan,
	})
	if err != nil {
		log.Error("failed to create payment link", sl.Err(err))
		metrics.PaymentLinksTotal.WithLabelValues("provider_error").Inc()
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to create payment link"))
		return
	}

	log.Info("payment link created",
		slog.Int("user_id", user.ID),
		slog.String("plan", req.Plan),
		slog.String("payment_link_id", link.ID))
	metrics.PaymentLinksTotal.WithLabelValues("ok").Inc()

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"payment_link_url": link.URL,
	}))
}
