package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/davyttu/confidance-crypto/internal/auth"
	"github.com/gorilla/mux"
)

type contextKey string

// WalletKey is the context key for the authenticated wallet address.
const WalletKey contextKey = "wallet"

// GetWallet extracts the authenticated wallet from the context.
// Returns empty string if not found.
func GetWallet(ctx context.Context) string {
	wallet, _ := ctx.Value(WalletKey).(string)
	return wallet
}

// WithWallet returns a copy of ctx carrying wallet
func WithWallet(ctx context.Context, wallet string) context.Context {
	return context.WithValue(ctx, WalletKey, wallet)
}

// AuthMiddleware rejects requests without a valid bearer token and stores the
// token's wallet in the request context.
func AuthMiddleware(jwtManager *auth.JWTManager) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, auth.ErrMissingToken)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w, auth.ErrInvalidToken)
				return
			}

			claims, err := jwtManager.Validate(parts[1])
			if err != nil {
				unauthorized(w, auth.ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithWallet(r.Context(), claims.Wallet())))
		})
	}
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
