package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/constants"
	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/AlenaMolokova/receiptbank/internal/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestWithdrawHandlerServeHTTP(t *testing.T) {
	userID := "user-1"
	createdAt := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	processedAt := createdAt.Add(time.Second)
	validBody := `{"amount":25,"paymentMethod":"paypal","paymentEmail":"me@example.com"}`

	matchRequest := func(amount, method, destination string) interface{} {
		return mock.MatchedBy(func(req usecase.WithdrawalRequest) bool {
			return req.UserID == userID &&
				req.Amount.Equal(decimal.RequireFromString(amount)) &&
				req.Method == method &&
				req.Destination == destination
		})
	}

	reserved := models.Withdrawal{
		ID:          "w-1",
		UserID:      userID,
		Amount:      decimal.NewFromInt(25),
		Method:      constants.MethodPayPal,
		Destination: "me@example.com",
		State:       constants.StatusReserved,
		CreatedAt:   createdAt,
	}

	tests := []struct {
		name           string
		body           string
		userID         string
		setupMocks     func(*MockLedger)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "withdrawal reserved",
			body:   validBody,
			userID: userID,
			setupMocks: func(m *MockLedger) {
				m.On("RequestWithdrawal", mock.Anything, matchRequest("25", "paypal", "me@example.com")).Return(reserved, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody: `{"withdrawal":{"withdrawalId":"w-1","userId":"user-1","amount":25.00,"paymentMethod":"paypal",` +
				`"paymentDestination":"me@example.com","state":"reserved","createdAt":"2026-04-01T09:00:00Z"}}`,
		},
		{
			name:   "card destination masked",
			body:   `{"amount":"12.5","paymentMethod":"card","paymentDestination":"4532015112830366","paymentEmail":"ignored@example.com"}`,
			userID: userID,
			setupMocks: func(m *MockLedger) {
				w := reserved
				w.Amount = decimal.RequireFromString("12.5")
				w.Method = constants.MethodCard
				w.Destination = "4532015112830366"
				m.On("RequestWithdrawal", mock.Anything, matchRequest("12.5", "card", "4532015112830366")).Return(w, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody: `{"withdrawal":{"withdrawalId":"w-1","userId":"user-1","amount":12.50,"paymentMethod":"card",` +
				`"paymentDestination":"************0366","state":"reserved","createdAt":"2026-04-01T09:00:00Z"}}`,
		},
		{
			name:           "unauthorized",
			body:           validBody,
			setupMocks:     func(m *MockLedger) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Unauthorized"}`,
		},
		{
			name:           "malformed body",
			body:           `{"amount":"lots"}`,
			userID:         userID,
			setupMocks:     func(m *MockLedger) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Invalid request format"}`,
		},
		{
			name:   "below minimum",
			body:   `{"amount":5,"paymentMethod":"paypal","paymentEmail":"me@example.com"}`,
			userID: userID,
			setupMocks: func(m *MockLedger) {
				err := fmt.Errorf("%w of %s", models.ErrBelowMinimum, "10.00")
				m.On("RequestWithdrawal", mock.Anything, matchRequest("5", "paypal", "me@example.com")).Return(models.Withdrawal{}, err)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"withdrawal amount is below the minimum of 10.00"}`,
		},
		{
			name:   "missing method",
			body:   `{"amount":25,"paymentEmail":"me@example.com"}`,
			userID: userID,
			setupMocks: func(m *MockLedger) {
				m.On("RequestWithdrawal", mock.Anything, matchRequest("25", "", "me@example.com")).Return(models.Withdrawal{}, models.ErrMethodRequired)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"payment method is required"}`,
		},
		{
			name:   "insufficient balance",
			body:   validBody,
			userID: userID,
			setupMocks: func(m *MockLedger) {
				rejected := reserved
				rejected.State = constants.StatusRejected
				m.On("RequestWithdrawal", mock.Anything, mock.Anything).Return(rejected, models.ErrInsufficientBalance)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Insufficient balance"}`,
		},
		{
			name:   "payout refused by provider",
			body:   validBody,
			userID: userID,
			setupMocks: func(m *MockLedger) {
				failed := reserved
				failed.State = constants.StatusFailed
				failed.FailureReason = "provider down"
				failed.ProcessedAt = &processedAt
				m.On("RequestWithdrawal", mock.Anything, mock.Anything).Return(failed, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody: `{"withdrawal":{"withdrawalId":"w-1","userId":"user-1","amount":25.00,"paymentMethod":"paypal",` +
				`"paymentDestination":"me@example.com","state":"failed","createdAt":"2026-04-01T09:00:00Z",` +
				`"processedAt":"2026-04-01T09:00:01Z","failureReason":"provider down"}}`,
		},
		{
			name:   "failure could not be recorded",
			body:   validBody,
			userID: userID,
			setupMocks: func(m *MockLedger) {
				err := fmt.Errorf("%w: %w", models.ErrPayoutFailed, errors.New("db error"))
				m.On("RequestWithdrawal", mock.Anything, mock.Anything).Return(reserved, err)
			},
			expectedStatus: http.StatusBadGateway,
			expectedBody:   `{"error":"Payout provider rejected the withdrawal"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockLedger{}
			tt.setupMocks(m)
			handler := NewWithdrawHandler(m)

			req := newRequest(http.MethodPost, "/api/withdrawals/request", tt.body, tt.userID)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			m.AssertExpectations(t)
		})
	}
}
