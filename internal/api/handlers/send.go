package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/recruitforge/outmail/internal/db/models"
	"github.com/recruitforge/outmail/internal/logging"
	"github.com/recruitforge/outmail/internal/mailer"
	"github.com/recruitforge/outmail/internal/mailer/factory"
)

// SendHandler handles POST /api/send. The caller addresses either an explicit
// account or a company (default-account resolution); when the resolved
// account supplies the sending identity, it is stamped onto the message.
func SendHandler(f *factory.Factory) http.HandlerFunc {
	type request struct {
		AccountID string         `json:"account_id"`
		CompanyID string         `json:"company_id"`
		Message   mailer.Message `json:"message"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.AccountID == "" && req.CompanyID == "" {
			http.Error(w, "account_id or company_id is required", http.StatusBadRequest)
			return
		}

		ctx := r.Context()
		msg := req.Message

		var provider mailer.Provider
		var err error
		if req.AccountID != "" {
			provider, err = f.ProviderFor(ctx, req.AccountID)
		} else {
			var account *models.EmailAccount
			provider, account, err = f.DefaultFor(ctx, req.CompanyID)
			if err == nil && msg.From == "" {
				msg.From = account.FromAddress
				msg.FromName = account.FromName
			}
		}
		if err != nil {
			writeError(w, err)
			return
		}

		result, err := provider.Send(ctx, &msg)
		if err != nil {
			writeError(w, err)
			return
		}

		log.Printf("✅ [%s] Sent via %s to %s (id=%s)",
			logging.GetRequestID(ctx), provider.Name(), msg.To, result.ProviderMessageID)
		writeJSON(w, http.StatusOK, result)
	}
}
