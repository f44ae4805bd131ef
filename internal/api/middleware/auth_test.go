package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/recruitforge/outmail/internal/db/models"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := database.AutoMigrate(&models.Config{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuth(t *testing.T) {
	database := newTestDB(t)
	database.Create(&models.Config{Key: "api_key", Value: "sk-testkey"})

	handler := APIKeyAuth(database)(okHandler())

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"bearer token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer sk-testkey") }, http.StatusOK},
		{"x-api-key header", func(r *http.Request) { r.Header.Set("x-api-key", "sk-testkey") }, http.StatusOK},
		{"wrong bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer sk-wrong") }, http.StatusUnauthorized},
		{"no credentials", func(r *http.Request) {}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestAPIKeyAuth_NoKeyConfigured(t *testing.T) {
	database := newTestDB(t)
	handler := APIKeyAuth(database)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first-run requests must pass, got %d", w.Code)
	}
}
