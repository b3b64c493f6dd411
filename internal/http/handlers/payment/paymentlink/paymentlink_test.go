package paymentlink

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
	"github.com/magabrotheeeer/fulfillment-service/internal/paymentprovider"
	"github.com/magabrotheeeer/fulfillment-service/internal/storage/repository"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockProviderClient struct {
	mock.Mock
}

func (m *MockProviderClient) CreatePaymentLink(ctx context.Context, req paymentprovider.CreatePaymentLinkRequest) (*paymentprovider.CreatePaymentLinkResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.CreatePaymentLinkResponse), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var testPlans = map[string]string{
	"bronze": "price_bronze",
	"silver": "price_silver",
	"gold":   "price_gold",
}

func TestPaymentLinkHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		setupMocks     func(r *MockUserRepository, p *MockProviderClient)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:        "success - create payment link",
			requestBody: Request{UserID: 42, Plan: "gold"},
			setupMocks: func(r *MockUserRepository, p *MockProviderClient) {
				r.On("GetUserByID", mock.Anything, 42).Return(&models.User{ID: 42}, nil).Once()
				p.On("CreatePaymentLink", mock.Anything, mock.MatchedBy(func(req paymentprovider.CreatePaymentLinkRequest) bool {
					return req.PriceID == "price_gold" &&
						req.CartID == "42" &&
						req.PlanTitle == "gold"
				})).Return(&paymentprovider.CreatePaymentLinkResponse{
					ID:  "plink_1",
					URL: "https://buy.stripe.com/test_123",
				}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "https://buy.stripe.com/test_123",
		},
		{
			name:           "unknown plan",
			requestBody:    Request{UserID: 42, Plan: "platinum"},
			setupMocks:     func(r *MockUserRepository, p *MockProviderClient) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "Invalid subscription plan",
		},
		{
			name:        "unknown user",
			requestBody: Request{UserID: 99, Plan: "bronze"},
			setupMocks: func(r *MockUserRepository, p *MockProviderClient) {
				r.On("GetUserByID", mock.Anything, 99).Return(nil, repository.ErrUserNotFound).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   "user not found",
		},
		{
			name:        "provider failure",
			requestBody: Request{UserID: 42, Plan: "silver"},
			setupMocks: func(r *MockUserRepository, p *MockProviderClient) {
				r.On("GetUserByID", mock.Anything, 42).Return(&models.User{ID: 42}, nil).Once()
				p.On("CreatePaymentLink", mock.Anything, mock.Anything).
					Return(nil, errors.New("api unavailable")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   "failed to create payment link",
		},
		{
			name:           "missing fields",
			requestBody:    map[string]any{"plan": "gold"},
			setupMocks:     func(r *MockUserRepository, p *MockProviderClient) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "UserID",
		},
		{
			name:           "invalid json body",
			requestBody:    "not json",
			setupMocks:     func(r *MockUserRepository, p *MockProviderClient) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			provider := new(MockProviderClient)
			handler := New(newNoopLogger(), repo, provider, testPlans)

			tt.setupMocks(repo, provider)

			var body []byte
			if s, ok := tt.requestBody.(string); ok {
				body = []byte(s)
			} else {
				body, _ = json.Marshal(tt.requestBody)
			}

			req := httptest.NewRequest(http.MethodPost, "/payment-links", bytes.NewBuffer(body))
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)

			repo.AssertExpectations(t)
			provider.AssertExpectations(t)
		})
	}
}
