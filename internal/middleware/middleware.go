package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/AlenaMolokova/receiptbank/internal/logger"
	"github.com/AlenaMolokova/receiptbank/internal/utils"
	"github.com/golang-jwt/jwt/v5"
)

type userKey struct{}

func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.FromContext(r.Context())
			authHeader := r.Header.Get("Authorization")

			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				log.Debug().Msg("missing or invalid Authorization header")
				utils.WriteJSONError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

			if err != nil || !token.Valid {
				log.Debug().Err(err).Msg("invalid token")
				utils.WriteJSONError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				log.Debug().Msg("invalid claims")
				utils.WriteJSONError(w, http.StatusUnauthorized, "Invalid token claims")
				return
			}

			userID, ok := userIDFromClaims(claims)
			if !ok {
				log.Debug().Msg("user_id not found in claims")
				utils.WriteJSONError(w, http.StatusUnauthorized, "Invalid token claims")
				return
			}

			ctx := WithUserID(r.Context(), userID)
			ctx = logger.WithContext(ctx, log.With().Str("user_id", userID).Logger())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userIDFromClaims accepts string ids and, for older tokens, numeric ones.
func userIDFromClaims(claims jwt.MapClaims) (string, bool) {
	switch v := claims["user_id"].(type) {
	case string:
		v = strings.TrimSpace(v)
		return v, v != ""
	case float64:
		return strconv.FormatInt(int64(v), 10), true
	}
	return "", false
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

func GetUserID(r *http.Request) (string, bool) {
	userID, ok := r.Context().Value(userKey{}).(string)
	return userID, ok && userID != ""
}
