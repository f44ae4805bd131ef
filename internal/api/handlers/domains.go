package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/recruitforge/outmail/internal/mailer/factory"
	"github.com/recruitforge/outmail/internal/mailer/resend"
)

// espFor resolves the account's provider and requires it to be the ESP.
// Sending-domain management is an ESP-only capability.
func espFor(w http.ResponseWriter, r *http.Request, f *factory.Factory) (*resend.Provider, bool) {
	accountID := chi.URLParam(r, "id")
	provider, err := f.ProviderFor(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	esp, ok := provider.(*resend.Provider)
	if !ok {
		http.Error(w, "Account is not an ESP account", http.StatusConflict)
		return nil, false
	}
	return esp, true
}

// CreateDomainHandler handles POST /api/accounts/{id}/domains
func CreateDomainHandler(f *factory.Factory) http.HandlerFunc {
	type request struct {
		Name string `json:"name"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			http.Error(w, "domain name is required", http.StatusBadRequest)
			return
		}

		esp, ok := espFor(w, r, f)
		if !ok {
			return
		}

		domain, err := esp.CreateDomain(r.Context(), req.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, domain)
	}
}

// GetDomainHandler handles GET /api/accounts/{id}/domains/{domainID}
func GetDomainHandler(f *factory.Factory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		esp, ok := espFor(w, r, f)
		if !ok {
			return
		}

		domain, err := esp.GetDomain(r.Context(), chi.URLParam(r, "domainID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, domain)
	}
}

// VerifyDomainHandler handles POST /api/accounts/{id}/domains/{domainID}/verify
func VerifyDomainHandler(f *factory.Factory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		esp, ok := espFor(w, r, f)
		if !ok {
			return
		}

		if err := esp.VerifyDomain(r.Context(), chi.URLParam(r, "domainID")); err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}

// DeleteDomainHandler handles DELETE /api/accounts/{id}/domains/{domainID}
func DeleteDomainHandler(f *factory.Factory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		esp, ok := espFor(w, r, f)
		if !ok {
			return
		}

		if err := esp.DeleteDomain(r.Context(), chi.URLParam(r, "domainID")); err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}
