package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/AlenaMolokova/receiptbank/internal/logger"
	"github.com/AlenaMolokova/receiptbank/internal/utils"
)

const SignatureHeader = "X-Payout-Signature"

// CallbackAuth guards the payout webhook with a shared secret. With no secret
// configured every call is refused.
func CallbackAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signature := r.Header.Get(SignatureHeader)
			if secret == "" || signature == "" ||
				subtle.ConstantTimeCompare([]byte(signature), []byte(secret)) != 1 {
				log := logger.FromContext(r.Context())
				log.Warn().Str("remote_addr", r.RemoteAddr).Msg("payout callback rejected: bad signature")
				utils.WriteJSONError(w, http.StatusUnauthorized, "Invalid signature")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
