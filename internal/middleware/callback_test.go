package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AlenaMolokova/receiptbank/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestCallbackAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name           string
		secret         string
		signature      string
		expectedStatus int
	}{
		{name: "matching signature", secret: "hook", signature: "hook", expectedStatus: http.StatusNoContent},
		{name: "wrong signature", secret: "hook", signature: "nope", expectedStatus: http.StatusUnauthorized},
		{name: "missing signature", secret: "hook", signature: "", expectedStatus: http.StatusUnauthorized},
		{name: "secret not configured", secret: "", signature: "", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/payouts/callback", nil)
			if tt.signature != "" {
				req.Header.Set(SignatureHeader, tt.signature)
			}
			w := httptest.NewRecorder()

			CallbackAuth(tt.secret)(next).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestCallbackAuth_LogsRejection(t *testing.T) {
	var buf bytes.Buffer
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/payouts/callback", nil)
	req.Header.Set(SignatureHeader, "nope")
	req = req.WithContext(logger.WithContext(req.Context(), logger.NewWithWriter(&buf)))
	w := httptest.NewRecorder()

	CallbackAuth("hook")(next).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "payout callback rejected: bad signature")
}
