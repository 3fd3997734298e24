package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/constants"
	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestWithdrawalsHandlerServeHTTP(t *testing.T) {
	userID := "user-1"
	createdAt := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	processedAt := createdAt.Add(time.Hour)

	tests := []struct {
		name           string
		userID         string
		setupMocks     func(*MockLedger)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "withdrawals listed",
			userID: userID,
			setupMocks: func(m *MockLedger) {
				m.On("ListWithdrawals", mock.Anything, userID).Return([]models.Withdrawal{
					{
						ID:            "w-2",
						UserID:        userID,
						Amount:        decimal.NewFromInt(15),
						Method:        constants.MethodVenmo,
						Destination:   "me@example.com",
						State:         constants.StatusFailed,
						FailureReason: "account closed",
						CreatedAt:     createdAt,
						ProcessedAt:   &processedAt,
					},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody: `[{"withdrawalId":"w-2","userId":"user-1","amount":15.00,"paymentMethod":"venmo",` +
				`"paymentDestination":"me@example.com","state":"failed","createdAt":"2026-04-01T09:00:00Z",` +
				`"processedAt":"2026-04-01T10:00:00Z","failureReason":"account closed"}]`,
		},
		{
			name:   "no withdrawals",
			userID: userID,
			setupMocks: func(m *MockLedger) {
				m.On("ListWithdrawals", mock.Anything, userID).Return([]models.Withdrawal{}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `[]`,
		},
		{
			name:           "unauthorized",
			setupMocks:     func(m *MockLedger) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Unauthorized"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockLedger{}
			tt.setupMocks(m)
			handler := NewWithdrawalsHandler(m)

			req := newRequest(http.MethodGet, "/api/withdrawals", "", tt.userID)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			m.AssertExpectations(t)
		})
	}
}

func TestWithdrawalGetHandlerServeHTTP(t *testing.T) {
	userID := "user-1"
	createdAt := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		id             string
		setupMocks     func(*MockLedger)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "own withdrawal",
			id:   "w-1",
			setupMocks: func(m *MockLedger) {
				m.On("GetWithdrawal", mock.Anything, userID, "w-1").Return(models.Withdrawal{
					ID:          "w-1",
					UserID:      userID,
					Amount:      decimal.NewFromInt(10),
					Method:      constants.MethodPayPal,
					Destination: "me@example.com",
					State:       constants.StatusReserved,
					CreatedAt:   createdAt,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody: `{"withdrawalId":"w-1","userId":"user-1","amount":10.00,"paymentMethod":"paypal",` +
				`"paymentDestination":"me@example.com","state":"reserved","createdAt":"2026-04-01T09:00:00Z"}`,
		},
		{
			name: "unknown or foreign withdrawal",
			id:   "w-9",
			setupMocks: func(m *MockLedger) {
				m.On("GetWithdrawal", mock.Anything, userID, "w-9").Return(models.Withdrawal{}, models.ErrWithdrawalNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"Not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockLedger{}
			tt.setupMocks(m)
			handler := NewWithdrawalGetHandler(m)

			req := newRequest(http.MethodGet, "/api/withdrawals/"+tt.id, "", userID)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.id)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			m.AssertExpectations(t)
		})
	}
}

func TestWithdrawalStatsHandlerServeHTTP(t *testing.T) {
	userID := "user-1"
	m := &MockLedger{}
	m.On("GetWithdrawalStats", mock.Anything, userID).Return(models.WithdrawalStats{
		TotalWithdrawn: decimal.NewFromInt(40),
		PendingAmount:  decimal.RequireFromString("12.5"),
		TotalCount:     5,
	}, nil)

	req := newRequest(http.MethodGet, "/api/withdrawals/stats/summary", "", userID)
	w := httptest.NewRecorder()
	NewWithdrawalStatsHandler(m).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"totalWithdrawn":40.00,"pendingAmount":12.50,"totalCount":5}`, w.Body.String())
	m.AssertExpectations(t)
}
