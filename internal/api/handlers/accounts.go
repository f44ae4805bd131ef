package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/recruitforge/outmail/internal/db/models"
	"github.com/recruitforge/outmail/internal/secrets"
	"gorm.io/gorm"
)

// CreateAccountHandler handles POST /api/accounts. The secret is the
// provider-specific credential object; it is encrypted before it touches the
// database and never returned.
func CreateAccountHandler(database *gorm.DB, cipher secrets.Cipher) http.HandlerFunc {
	type request struct {
		CompanyID   string             `json:"company_id"`
		Type        models.AccountType `json:"type"`
		FromAddress string             `json:"from_address"`
		FromName    string             `json:"from_name"`
		IsDefault   bool               `json:"is_default"`
		Secret      json.RawMessage    `json:"secret"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.CompanyID == "" || req.FromAddress == "" || len(req.Secret) == 0 {
			http.Error(w, "company_id, from_address and secret are required", http.StatusBadRequest)
			return
		}
		if !req.Type.Valid() {
			http.Error(w, "unknown account type", http.StatusBadRequest)
			return
		}

		ciphertext, err := cipher.Encrypt(string(req.Secret))
		if err != nil {
			writeError(w, err)
			return
		}

		account := models.EmailAccount{
			ID:          uuid.NewString(),
			CompanyID:   req.CompanyID,
			Type:        req.Type,
			FromAddress: req.FromAddress,
			FromName:    req.FromName,
			IsDefault:   req.IsDefault,
			Status:      models.StatusActive,
		}

		err = database.Transaction(func(tx *gorm.DB) error {
			if req.IsDefault {
				if err := tx.Model(&models.EmailAccount{}).
					Where("company_id = ? AND is_default = ?", req.CompanyID, true).
					Update("is_default", false).Error; err != nil {
					return err
				}
			}
			if err := tx.Create(&account).Error; err != nil {
				return err
			}
			return tx.Create(&models.EmailSecret{
				AccountID:  account.ID,
				Ciphertext: ciphertext,
			}).Error
		})
		if err != nil {
			http.Error(w, "Failed to create account", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, account)
	}
}

// ListAccountsHandler handles GET /api/accounts?company_id=...
func ListAccountsHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID := r.URL.Query().Get("company_id")
		if companyID == "" {
			http.Error(w, "company_id is required", http.StatusBadRequest)
			return
		}

		var accounts []models.EmailAccount
		database.Where("company_id = ?", companyID).Order("created_at ASC").Find(&accounts)

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"accounts": accounts,
			"count":    len(accounts),
		})
	}
}

// PromoteAccountHandler handles POST /api/accounts/{id}/default. Demotes the
// company's other accounts and promotes the target in one transaction, so at
// most one default survives the call.
func PromoteAccountHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := database.Transaction(func(tx *gorm.DB) error {
			var account models.EmailAccount
			if err := tx.First(&account, "id = ?", id).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.EmailAccount{}).
				Where("company_id = ? AND is_default = ?", account.CompanyID, true).
				Update("is_default", false).Error; err != nil {
				return err
			}
			return tx.Model(&models.EmailAccount{}).
				Where("id = ?", id).
				Updates(map[string]interface{}{"is_default": true, "status": models.StatusActive}).Error
		})

		if err == gorm.ErrRecordNotFound {
			http.Error(w, "Account not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "Failed to set default account", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}

// DeleteAccountHandler handles DELETE /api/accounts/{id}. Account and secret
// are removed together.
func DeleteAccountHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		err := database.Transaction(func(tx *gorm.DB) error {
			result := tx.Delete(&models.EmailAccount{}, "id = ?", id)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
			return tx.Delete(&models.EmailSecret{}, "account_id = ?", id).Error
		})

		if err == gorm.ErrRecordNotFound {
			http.Error(w, "Account not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "Failed to delete account", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}
