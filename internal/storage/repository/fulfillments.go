package repository

import (
	"context"
	"fmt"
)

// IsSessionFulfilled проверяет наличие записи о сессии в журнале исполнений.
func (s *Storage) IsSessionFulfilled(ctx context.Context, sessionID string) (bool, error) {
	const op = "storage.IsSessionFulfilled"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM fulfilled_sessions WHERE session_id = $1)`
	if err := s.DB.QueryRowContext(ctx, query, sessionID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// GrantAccessForSession в одной транзакции выставляет флаг доступа
// пользователя и записывает сессию в журнал исполнений. Повторная
// вставка того же session_id игнорируется (идемпотентность закреплена
// первичным ключом журнала).
func (s *Storage) GrantAccessForSession(ctx context.Context, sessionID string, userID int) error {
	const op = "storage.GrantAccessForSession"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err = tx.ExecContext(ctx,
		`UPDATE users SET has_access = TRUE WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO fulfilled_sessions (session_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (session_id) DO NOTHING`, sessionID, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
