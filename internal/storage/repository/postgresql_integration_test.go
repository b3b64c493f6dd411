package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/fulfillment-service/internal/models"
)

func TestStorage_CreateAndGetUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	referral := uuid.New().String()
	id, err := storage.CreateUser(context.Background(), models.User{
		Email:        "test@example.com",
		PasswordHash: "hashedpassword",
		Name:         "Test User",
		ReferralCode: referral,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	got, err := storage.GetUserByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "test@example.com", got.Email)
	assert.Equal(t, "Test User", got.Name)
	assert.Equal(t, referral, got.ReferralCode)
	assert.False(t, got.HasAccess)
	assert.Nil(t, got.ReferrerID)

	byCode, err := storage.GetUserByReferralCode(context.Background(), referral)
	require.NoError(t, err)
	assert.Equal(t, id, byCode.ID)
}

func TestStorage_GetUserByID_NotFound(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	_, err := storage.GetUserByID(context.Background(), 9999)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStorage_UpdateUserAccess(t *testing.T) {
	tests := []struct {
		name      string
		hasAccess bool
	}{
		{name: "grant access", hasAccess: true},
		{name: "revoke access", hasAccess: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, cleanup := setupTestDatabase(t)
			defer cleanup()

			factory := NewTestDataFactory(storage)
			userID := factory.CreateUser(t, "user@example.com", "User", uuid.New().String(), !tt.hasAccess)

			err := storage.UpdateUserAccess(context.Background(), userID, tt.hasAccess)
			require.NoError(t, err)

			got, err := storage.GetUserByID(context.Background(), userID)
			require.NoError(t, err)
			assert.Equal(t, tt.hasAccess, got.HasAccess)
		})
	}
}

func TestStorage_UpdateUserAccess_UnknownUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	err := storage.UpdateUserAccess(context.Background(), 404, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStorage_GrantAccessForSession(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	userID := factory.CreateUser(t, "buyer@example.com", "Buyer", uuid.New().String(), false)
	sessionID := fmt.Sprintf("cs_%s", uuid.New().String())

	fulfilled, err := storage.IsSessionFulfilled(context.Background(), sessionID)
	require.NoError(t, err)
	assert.False(t, fulfilled)

	require.NoError(t, storage.GrantAccessForSession(context.Background(), sessionID, userID))

	fulfilled, err = storage.IsSessionFulfilled(context.Background(), sessionID)
	require.NoError(t, err)
	assert.True(t, fulfilled)

	user, err := storage.GetUserByID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, user.HasAccess)

	// Повторная выдача по той же сессии не должна падать
	require.NoError(t, storage.GrantAccessForSession(context.Background(), sessionID, userID))

	var count int
	require.NoError(t, storage.DB.QueryRow(
		`SELECT COUNT(*) FROM fulfilled_sessions WHERE session_id = $1`, sessionID).Scan(&count))
	assert.Equal(t, 1, count)
}
