package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/fulfillment-service/internal/models"
)

// CreateUser сохраняет нового пользователя в базу данных и возвращает его ID.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (int, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID int
	query := `INSERT INTO users (email, password_hash, name, referral_code, referrer_id)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.Name, user.ReferralCode,
		user.ReferrerID).Scan(&newID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetUserByID возвращает пользователя по его ID.
// Если пользователь отсутствует, возвращает ErrUserNotFound.
func (s *Storage) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	const op = "storage.GetUserByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, email, password_hash, name, referral_code, referrer_id,
			      has_access, created_at
			  FROM users
			  WHERE id = $1`
	u := &models.User{}
	row := s.DB.QueryRowContext(ctx, query, id)

	var referrerID sql.NullInt64
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name,
		&u.ReferralCode, &referrerID, &u.HasAccess, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if referrerID.Valid {
		rid := int(referrerID.Int64)
		u.ReferrerID = &rid
	}
	return u, nil
}

// GetUserByReferralCode возвращает пользователя по реферальному коду.
func (s *Storage) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	const op = "storage.GetUserByReferralCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, email, password_hash, name, referral_code, referrer_id,
			      has_access, created_at
			  FROM users
			  WHERE referral_code = $1`
	u := &models.User{}
	row := s.DB.QueryRowContext(ctx, query, code)

	var referrerID sql.NullInt64
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name,
		&u.ReferralCode, &referrerID, &u.HasAccess, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if referrerID.Valid {
		rid := int(referrerID.Int64)
		u.ReferrerID = &rid
	}
	return u, nil
}

// UpdateUserAccess выставляет флаг доступа пользователя.
func (s *Storage) UpdateUserAccess(ctx context.Context, userID int, hasAccess bool) error {
	const op = "storage.UpdateUserAccess"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET has_access = $1
			  WHERE id = $2`
	res, err := s.DB.ExecContext(ctx, query, hasAccess, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}
