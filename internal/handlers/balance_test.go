package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestBalanceHandlerServeHTTP(t *testing.T) {
	userID := "user-1"

	tests := []struct {
		name           string
		userID         string
		setupMocks     func(*MockLedger)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "balance returned",
			userID: userID,
			setupMocks: func(m *MockLedger) {
				m.On("GetBalance", mock.Anything, userID).Return(models.Balance{
					UserID:           userID,
					Available:        decimal.RequireFromString("7.5"),
					Pending:          decimal.RequireFromString("10"),
					LifetimeEarnings: decimal.RequireFromString("17.5"),
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"available":7.50,"pending":10.00,"lifetime_earnings":17.50}`,
		},
		{
			name:   "new user",
			userID: "user-2",
			setupMocks: func(m *MockLedger) {
				m.On("GetBalance", mock.Anything, "user-2").Return(models.Balance{UserID: "user-2"}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"available":0,"pending":0,"lifetime_earnings":0}`,
		},
		{
			name:           "unauthorized",
			setupMocks:     func(m *MockLedger) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Unauthorized"}`,
		},
		{
			name:   "storage failure",
			userID: userID,
			setupMocks: func(m *MockLedger) {
				m.On("GetBalance", mock.Anything, userID).Return(models.Balance{}, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"Internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockLedger{}
			tt.setupMocks(m)
			handler := NewBalanceHandler(m)

			req := newRequest(http.MethodGet, "/api/balance", "", tt.userID)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			m.AssertExpectations(t)
		})
	}
}
