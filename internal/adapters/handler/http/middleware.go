package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

// VoterIDKey carries the authenticated voter's opaque identity through the
// request context. The token itself is issued by the external identity
// provider; this layer only verifies and decodes it.
const VoterIDKey contextKey = "voterID"

// AuthMiddleware extracts the voter identity from the access_token cookie or
// a bearer Authorization header.
func AuthMiddleware(jwtSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := tokenFromRequest(r)
			if tokenStr == "" {
				http.Error(w, "Unauthorized: missing access token", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return jwtSecret, nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Unauthorized: invalid access token", http.StatusUnauthorized)
				return
			}

			sub, err := token.Claims.GetSubject()
			if err != nil {
				http.Error(w, "Unauthorized: invalid access token", http.StatusUnauthorized)
				return
			}
			voterID, err := uuid.Parse(sub)
			if err != nil {
				http.Error(w, "Unauthorized: invalid subject", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), VoterIDKey, voterID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
