package middleware

import (
	"net/http"
	"strings"

	"github.com/recruitforge/outmail/internal/db"
	"gorm.io/gorm"
)

// APIKeyAuth middleware validates the API key from the Authorization header
// or the x-api-key header.
func APIKeyAuth(database *gorm.DB) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			expectedKey := db.GetAPIKey(database)
			if expectedKey == "" {
				// No API key configured, allow all requests (first-run scenario)
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				if strings.TrimPrefix(authHeader, "Bearer ") == expectedKey {
					next.ServeHTTP(w, r)
					return
				}
			}

			if r.Header.Get("x-api-key") == expectedKey {
				next.ServeHTTP(w, r)
				return
			}

			http.Error(w, `{"error":"invalid or missing API key"}`, http.StatusUnauthorized)
		})
	}
}
