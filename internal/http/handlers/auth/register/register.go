// Package register обрабатывает регистрацию новых пользователей.
package register

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/fulfillment-service/internal/http/response"
	"github.com/magabrotheeeer/fulfillment-service/internal/lib/sl"
	"github.com/magabrotheeeer/fulfillment-service/internal/models"
	"github.com/magabrotheeeer/fulfillment-service/internal/services/user"
)

// Request — входные данные для регистрации.
type Request struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6"`
	Name         string `json:"name" validate:"required,min=2,max=50"`
	ReferralCode string `json:"referral_code,omitempty"`
}

// UserService регистрирует пользователей.
type UserService interface {
	Register(ctx context.Context, email, rawPassword, name, referralCode string) (*models.User, error)
}

// Handler обрабатывает POST /register.
type Handler struct {
	log      *slog.Logger
	service  UserService
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service UserService) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP обрабатывает HTTP-запрос на регистрацию.
// @Summary Зарегистрировать пользователя
// @Description Создает пользователя без доступа; доступ выдается после оплаты
// @Tags auth
// @Accept json
// @Produce json
// @Param request body Request true "Данные пользователя"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

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

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}
	log.Info("all fields are validated")

	created, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name, req.ReferralCode)
	if err != nil {
		if errors.Is(err, user.ErrReferrerNotFound) {
			log.Error("unknown referral code", slog.String("referral_code", req.ReferralCode))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("unknown referral code"))
			return
		}
		log.Error("registration failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to register user"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user_id":       created.ID,
		"referral_code": created.ReferralCode,
		"message":       "user created successfully",
	}))
}
