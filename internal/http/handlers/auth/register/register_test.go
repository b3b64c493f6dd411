package register

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/fulfillment-service/internal/models"
	"github.com/magabrotheeeer/fulfillment-service/internal/services/user"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, email, rawPassword, name, referralCode string) (*models.User, error) {
	args := m.Called(ctx, email, rawPassword, name, referralCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestRegisterHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		setupMocks     func(s *MockUserService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "successful registration",
			requestBody: Request{
				Email:    "test@example.com",
				Password: "password123",
				Name:     "testuser",
			},
			setupMocks: func(s *MockUserService) {
				s.On("Register", mock.Anything, "test@example.com", "password123", "testuser", "").
					Return(&models.User{ID: 7, ReferralCode: "abc123def456"}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "user created successfully",
		},
		{
			name: "unknown referral code",
			requestBody: Request{
				Email:        "test@example.com",
				Password:     "password123",
				Name:         "testuser",
				ReferralCode: "nosuchcode",
			},
			setupMocks: func(s *MockUserService) {
				s.On("Register", mock.Anything, "test@example.com", "password123", "testuser", "nosuchcode").
					Return(nil, user.ErrReferrerNotFound).Once()
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "unknown referral code",
		},
		{
			name: "missing email",
			requestBody: Request{
				Password: "password123",
				Name:     "testuser",
			},
			setupMocks:     func(s *MockUserService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Email",
		},
		{
			name: "service failure",
			requestBody: Request{
				Email:    "test@example.com",
				Password: "password123",
				Name:     "testuser",
			},
			setupMocks: func(s *MockUserService) {
				s.On("Register", mock.Anything, "test@example.com", "password123", "testuser", "").
					Return(nil, errors.New("db error")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "failed to register user",
		},
		{
			name:           "invalid json body",
			requestBody:    "not json",
			setupMocks:     func(s *MockUserService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockUserService)
			handler := New(newNoopLogger(), service)

			tt.setupMocks(service)

			var body []byte
			if s, ok := tt.requestBody.(string); ok {
				body = []byte(s)
			} else {
				body, _ = json.Marshal(tt.requestBody)
			}

			req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBuffer(body))
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)

			service.AssertExpectations(t)
		})
	}
}
