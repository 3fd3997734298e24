package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestReceiptsListHandlerServeHTTP(t *testing.T) {
	userID := "user-1"
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		target         string
		userID         string
		setupMocks     func(*MockLedger)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "receipts listed",
			target: "/api/receipts?category=Grocery&limit=5",
			userID: userID,
			setupMocks: func(m *MockLedger) {
				filter := models.EntryFilter{Category: "Grocery", Limit: 5}
				m.On("ListReceipts", mock.Anything, userID, filter).Return([]models.ReceiptEntry{{
					ID:         "e-1",
					Merchant:   "Corner Shop",
					Category:   "grocery",
					Subtotal:   decimal.RequireFromString("84.32"),
					Earned:     decimal.RequireFromString("0.12"),
					Multiplier: 1,
					DedupeKey:  "k-1",
					CreatedAt:  createdAt,
				}}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody: `[{"id":"e-1","merchant":"Corner Shop","category":"grocery","subtotal":84.32,"earned":0.12,` +
				`"multiplier":1,"dedupe_key":"k-1","created_at":"2026-03-01T12:00:00Z"}]`,
		},
		{
			name:   "no receipts",
			target: "/api/receipts",
			userID: userID,
			setupMocks: func(m *MockLedger) {
				m.On("ListReceipts", mock.Anything, userID, models.EntryFilter{Limit: 100}).Return([]models.ReceiptEntry(nil), nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `[]`,
		},
		{
			name:   "limit capped",
			target: "/api/receipts?limit=5000",
			userID: userID,
			setupMocks: func(m *MockLedger) {
				m.On("ListReceipts", mock.Anything, userID, models.EntryFilter{Limit: 100}).Return([]models.ReceiptEntry{}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `[]`,
		},
		{
			name:   "time range",
			target: "/api/receipts?from=2026-01-01T00:00:00Z&to=2026-02-01T00:00:00Z",
			userID: userID,
			setupMocks: func(m *MockLedger) {
				match := mock.MatchedBy(func(f models.EntryFilter) bool {
					return f.From.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) &&
						f.To.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
				})
				m.On("ListReceipts", mock.Anything, userID, match).Return([]models.ReceiptEntry{}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `[]`,
		},
		{
			name:           "bad limit",
			target:         "/api/receipts?limit=abc",
			userID:         userID,
			setupMocks:     func(m *MockLedger) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"limit must be a positive integer"}`,
		},
		{
			name:           "bad from",
			target:         "/api/receipts?from=yesterday",
			userID:         userID,
			setupMocks:     func(m *MockLedger) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"from must be an RFC 3339 timestamp"}`,
		},
		{
			name:           "unauthorized",
			target:         "/api/receipts",
			setupMocks:     func(m *MockLedger) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Unauthorized"}`,
		},
		{
			name:   "storage failure",
			target: "/api/receipts",
			userID: userID,
			setupMocks: func(m *MockLedger) {
				m.On("ListReceipts", mock.Anything, userID, mock.Anything).Return([]models.ReceiptEntry(nil), errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"Internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockLedger{}
			tt.setupMocks(m)
			handler := NewReceiptsListHandler(m)

			req := newRequest(http.MethodGet, tt.target, "", tt.userID)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			m.AssertExpectations(t)
		})
	}
}

func TestReceiptStatsHandlerServeHTTP(t *testing.T) {
	userID := "user-1"
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		target         string
		setupMocks     func(*MockLedger)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "weekly stats",
			target: "/api/receipts/stats?period=week",
			setupMocks: func(m *MockLedger) {
				m.On("GetStats", mock.Anything, userID, "week", mock.Anything).Return(models.ReceiptStats{
					Period:          "week",
					PeriodStart:     start,
					TotalEarnings:   decimal.RequireFromString("12.62"),
					PeriodEarnings:  decimal.RequireFromString("2.62"),
					TotalReceipts:   9,
					PeriodReceipts:  2,
					AvgReceiptValue: decimal.RequireFromString("691.66"),
					TopCategories: []models.CategoryStat{
						{Category: "electronics", Count: 1, TotalEarnings: decimal.RequireFromString("2.50")},
						{Category: "grocery", Count: 1, TotalEarnings: decimal.RequireFromString("0.12")},
					},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody: `{"period":"week","periodStart":"2026-03-02T00:00:00Z","totalEarnings":12.62,"periodEarnings":2.62,` +
				`"totalReceipts":9,"periodReceipts":2,"avgReceiptValue":691.66,"topCategories":[` +
				`{"category":"electronics","count":1,"earnings":2.50},{"category":"grocery","count":1,"earnings":0.12}]}`,
		},
		{
			name:   "all time without receipts",
			target: "/api/receipts/stats?period=all",
			setupMocks: func(m *MockLedger) {
				m.On("GetStats", mock.Anything, userID, "all", mock.Anything).Return(models.ReceiptStats{Period: "all"}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody: `{"period":"all","totalEarnings":0,"periodEarnings":0,"totalReceipts":0,"periodReceipts":0,` +
				`"avgReceiptValue":0,"topCategories":[]}`,
		},
		{
			name:   "invalid period",
			target: "/api/receipts/stats?period=decade",
			setupMocks: func(m *MockLedger) {
				m.On("GetStats", mock.Anything, userID, "decade", mock.Anything).Return(models.ReceiptStats{}, models.ErrInvalidPeriod)
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid stats period"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockLedger{}
			tt.setupMocks(m)
			handler := NewReceiptStatsHandler(m)

			req := newRequest(http.MethodGet, tt.target, "", userID)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
			m.AssertExpectations(t)
		})
	}
}
