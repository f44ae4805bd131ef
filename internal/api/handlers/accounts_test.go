package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/recruitforge/outmail/internal/db/models"
	"github.com/recruitforge/outmail/internal/secrets"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := db.AutoMigrate(&models.EmailAccount{}, &models.EmailSecret{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newAccountsRouter(db *gorm.DB, cipher secrets.Cipher) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/api/accounts", CreateAccountHandler(db, cipher))
	r.Get("/api/accounts", ListAccountsHandler(db))
	r.Post("/api/accounts/{id}/default", PromoteAccountHandler(db))
	r.Delete("/api/accounts/{id}", DeleteAccountHandler(db))
	return r
}

func seedAccount(t *testing.T, db *gorm.DB, account models.EmailAccount) models.EmailAccount {
	t.Helper()
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.Status == "" {
		account.Status = models.StatusActive
	}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func TestCreateAccount(t *testing.T) {
	db := newTestDB(t)
	cipher := secrets.NewAESCipher([]byte("test-key"))
	router := newAccountsRouter(db, cipher)

	body := `{
		"company_id": "co-1",
		"type": "smtp",
		"from_address": "hr@example.com",
		"from_name": "HR",
		"secret": {"host":"mail.example.com","port":587,"username":"u","password":"p","useTls":false}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/accounts", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Fatal("response must not echo the secret")
	}

	var created models.EmailAccount
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" || created.Status != models.StatusActive {
		t.Fatalf("created = %+v", created)
	}

	var secret models.EmailSecret
	if err := db.First(&secret, "account_id = ?", created.ID).Error; err != nil {
		t.Fatalf("secret row missing: %v", err)
	}
	plaintext, err := cipher.Decrypt(secret.Ciphertext)
	if err != nil {
		t.Fatalf("decrypt stored secret: %v", err)
	}
	if !strings.Contains(plaintext, `"host":"mail.example.com"`) {
		t.Fatalf("stored secret = %s", plaintext)
	}
}

func TestCreateAccount_ClearsExistingDefault(t *testing.T) {
	db := newTestDB(t)
	cipher := secrets.NewAESCipher([]byte("test-key"))
	router := newAccountsRouter(db, cipher)

	existing := seedAccount(t, db, models.EmailAccount{
		CompanyID: "co-1", Type: models.TypeESP, FromAddress: "old@example.com", IsDefault: true,
	})

	body := `{
		"company_id": "co-1",
		"type": "esp",
		"from_address": "new@example.com",
		"is_default": true,
		"secret": {"apiKey":"re_key"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/accounts", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var count int64
	db.Model(&models.EmailAccount{}).
		Where("company_id = ? AND is_default = ?", "co-1", true).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one default account, got %d", count)
	}

	var demoted models.EmailAccount
	db.First(&demoted, "id = ?", existing.ID)
	if demoted.IsDefault {
		t.Fatal("previous default was not demoted")
	}
}

func TestCreateAccount_Validation(t *testing.T) {
	db := newTestDB(t)
	router := newAccountsRouter(db, secrets.NewAESCipher([]byte("test-key")))

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing company", `{"type":"smtp","from_address":"a@x.com","secret":{}}`},
		{"missing secret", `{"company_id":"co-1","type":"smtp","from_address":"a@x.com"}`},
		{"unknown type", `{"company_id":"co-1","type":"carrier-pigeon","from_address":"a@x.com","secret":{"k":"v"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/accounts", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestListAccounts(t *testing.T) {
	db := newTestDB(t)
	router := newAccountsRouter(db, secrets.NewAESCipher([]byte("test-key")))

	seedAccount(t, db, models.EmailAccount{CompanyID: "co-1", Type: models.TypeSMTP, FromAddress: "a@x.com"})
	seedAccount(t, db, models.EmailAccount{CompanyID: "co-1", Type: models.TypeESP, FromAddress: "b@x.com"})
	seedAccount(t, db, models.EmailAccount{CompanyID: "co-2", Type: models.TypeSMTP, FromAddress: "c@x.com"})

	req := httptest.NewRequest(http.MethodGet, "/api/accounts?company_id=co-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Accounts []models.EmailAccount `json:"accounts"`
		Count    int                   `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 || len(resp.Accounts) != 2 {
		t.Fatalf("count = %d, accounts = %d", resp.Count, len(resp.Accounts))
	}

	// company_id is mandatory
	req = httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status without company_id = %d, want 400", w.Code)
	}
}

func TestPromoteAccount(t *testing.T) {
	db := newTestDB(t)
	router := newAccountsRouter(db, secrets.NewAESCipher([]byte("test-key")))

	current := seedAccount(t, db, models.EmailAccount{
		CompanyID: "co-1", Type: models.TypeESP, FromAddress: "a@x.com", IsDefault: true,
	})
	target := seedAccount(t, db, models.EmailAccount{
		CompanyID: "co-1", Type: models.TypeSMTP, FromAddress: "b@x.com", Status: models.StatusDisabled,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/accounts/"+target.ID+"/default", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var promoted, demoted models.EmailAccount
	db.First(&promoted, "id = ?", target.ID)
	db.First(&demoted, "id = ?", current.ID)
	if !promoted.IsDefault || promoted.Status != models.StatusActive {
		t.Fatalf("promoted = %+v", promoted)
	}
	if demoted.IsDefault {
		t.Fatal("previous default was not demoted")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/accounts/no-such-id/default", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status for unknown account = %d, want 404", w.Code)
	}
}

func TestDeleteAccount(t *testing.T) {
	db := newTestDB(t)
	cipher := secrets.NewAESCipher([]byte("test-key"))
	router := newAccountsRouter(db, cipher)

	account := seedAccount(t, db, models.EmailAccount{CompanyID: "co-1", Type: models.TypeSMTP, FromAddress: "a@x.com"})
	blob, _ := cipher.Encrypt(`{"host":"h"}`)
	if err := db.Create(&models.EmailSecret{AccountID: account.ID, Ciphertext: blob}).Error; err != nil {
		t.Fatalf("create secret: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/accounts/"+account.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var accounts, secretRows int64
	db.Model(&models.EmailAccount{}).Where("id = ?", account.ID).Count(&accounts)
	db.Model(&models.EmailSecret{}).Where("account_id = ?", account.ID).Count(&secretRows)
	if accounts != 0 || secretRows != 0 {
		t.Fatalf("account rows = %d, secret rows = %d after delete", accounts, secretRows)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/accounts/no-such-id", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status for unknown account = %d, want 404", w.Code)
	}
}
