package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware(t *testing.T) {
	secret := "test-secret"

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r)
		if !ok {
			utils.WriteJSONError(w, http.StatusInternalServerError, "UserID not found")
			return
		}
		utils.WriteJSON(w, http.StatusOK, map[string]string{"user_id": userID})
	})

	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "valid token",
			authHeader:     "Bearer " + signToken(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"user_id": "user-1", "exp": future}),
			expectedStatus: http.StatusOK,
			expectedBody:   `{"user_id":"user-1"}`,
		},
		{
			name:           "numeric user id",
			authHeader:     "Bearer " + signToken(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"user_id": float64(42), "exp": future}),
			expectedStatus: http.StatusOK,
			expectedBody:   `{"user_id":"42"}`,
		},
		{
			name:           "missing Authorization header",
			authHeader:     "",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Missing or invalid Authorization header"}`,
		},
		{
			name:           "wrong header scheme",
			authHeader:     "Basic token",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Missing or invalid Authorization header"}`,
		},
		{
			name:           "expired token",
			authHeader:     "Bearer " + signToken(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"user_id": "user-1", "exp": time.Now().Add(-time.Hour).Unix()}),
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Invalid token"}`,
		},
		{
			name:           "token without exp",
			authHeader:     "Bearer " + signToken(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"user_id": "user-1"}),
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Invalid token"}`,
		},
		{
			name:           "wrong secret",
			authHeader:     "Bearer " + signToken(t, jwt.SigningMethodHS256, "other-secret", jwt.MapClaims{"user_id": "user-1", "exp": future}),
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Invalid token"}`,
		},
		{
			name:           "unexpected signing method",
			authHeader:     "Bearer " + signToken(t, jwt.SigningMethodHS512, secret, jwt.MapClaims{"user_id": "user-1", "exp": future}),
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Invalid token"}`,
		},
		{
			name:           "malformed token",
			authHeader:     "Bearer invalid.token.here",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Invalid token"}`,
		},
		{
			name:           "missing user id",
			authHeader:     "Bearer " + signToken(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"exp": future}),
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Invalid token claims"}`,
		},
		{
			name:           "empty user id",
			authHeader:     "Bearer " + signToken(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{"user_id": " ", "exp": future}),
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Invalid token claims"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()

			AuthMiddleware(secret)(nextHandler).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestGetUserID(t *testing.T) {
	tests := []struct {
		name       string
		ctx        context.Context
		expectedID string
		expectedOK bool
	}{
		{
			name:       "user id present",
			ctx:        WithUserID(context.Background(), "user-1"),
			expectedID: "user-1",
			expectedOK: true,
		},
		{
			name:       "user id missing",
			ctx:        context.Background(),
			expectedID: "",
			expectedOK: false,
		},
		{
			name:       "wrong value type",
			ctx:        context.WithValue(context.Background(), userKey{}, 7),
			expectedID: "",
			expectedOK: false,
		},
		{
			name:       "empty user id",
			ctx:        WithUserID(context.Background(), ""),
			expectedID: "",
			expectedOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil).WithContext(tt.ctx)
			userID, ok := GetUserID(req)
			assert.Equal(t, tt.expectedID, userID)
			assert.Equal(t, tt.expectedOK, ok)
		})
	}
}

func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tokenString, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err, "Failed to generate token")
	return tokenString
}
