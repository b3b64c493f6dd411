package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/fulfillment-service/internal/migrations"
)

// setupTestDatabase поднимает контейнер PostgreSQL, применяет миграции
// и возвращает готовое хранилище с функцией очистки.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx)
	require.NoError(t, err)

	storage, err := New(dsn)
	require.NoError(t, err)

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	cleanup := func() {
		storage.DB.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return storage, cleanup
}

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя и возвращает его ID
func (f *TestDataFactory) CreateUser(t *testing.T, email, name, referralCode string, hasAccess bool) int {
	t.Helper()
	var id int
	err := f.storage.DB.QueryRow(`INSERT INTO users (email, password_hash, name, referral_code, has_access)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		email, "hashedpassword", name, referralCode, hasAccess).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateFulfilledSession создает запись журнала исполнений
func (f *TestDataFactory) CreateFulfilledSession(t *testing.T, sessionID string, userID int) {
	t.Helper()
	_, err := f.storage.DB.Exec(`INSERT INTO fulfilled_sessions (session_id, user_id)
		VALUES ($1, $2)`, sessionID, userID)
	require.NoError(t, err)
}
