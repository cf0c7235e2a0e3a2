package middleware

import (
	"net/http"
	"strings"

	"github.com/meridianbank/core/internal/auth"
	"github.com/meridianbank/core/internal/handler"
)

// Auth validates the bearer token and puts the caller's account number on the
// request context. Every route behind it can assume an authenticated account.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			claims, err := auth.ValidateToken(token, secret)
			if err != nil {
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			ctx := auth.ContextWithAccount(r.Context(), claims.AccountNumber)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
