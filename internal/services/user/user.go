// Package user содержит логику регистрации пользователей и выдачи
// реферальных кодов.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/fulfillment-service/internal/lib/password"
	"github.com/magabrotheeeer/fulfillment-service/internal/models"
	"github.com/magabrotheeeer/fulfillment-service/internal/storage/repository"
)

// ErrReferrerNotFound возвращается, когда переданный реферальный код
// не принадлежит ни одному пользователю.
var ErrReferrerNotFound = errors.New("referrer not found")

// Repository определяет методы хранилища для работы с пользователями.
type Repository interface {
	CreateUser(ctx context.Context, user models.User) (int, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
}

// Service реализует регистрацию пользователей.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// New создает новый Service.
func New(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Register создает пользователя без доступа к платформе. Доступ выдаётся
// отдельно, после подтверждения оплаты. Если передан реферальный код,
// находится его владелец и сохраняется ссылка на него.
func (s *Service) Register(ctx context.Context, email, rawPassword, name, referralCode string) (*models.User, error) {
	const op = "user.Register"

	hash, err := password.GetHash(rawPassword)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Name:         name,
		ReferralCode: newReferralCode(),
		HasAccess:    false,
	}

	if referralCode != "" {
		referrer, err := s.repo.GetUserByReferralCode(ctx, referralCode)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, fmt.Errorf("%s: %w", op, ErrReferrerNotFound)
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		user.ReferrerID = &referrer.ID
	}

	id, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.ID = id

	s.log.Info("user registered",
		slog.Int("user_id", id),
		slog.String("op", op))
	return &user, nil
}

// newReferralCode выдает короткий уникальный код из UUID.
func newReferralCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
