// Package handlers implements the JSON API surface: account management, the
// send operation and ESP sending-domain management. Handlers are thin; all
// delivery logic lives in the mailer packages.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/recruitforge/outmail/internal/mailer"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps the mailer error taxonomy onto HTTP statuses: account
// problems are the caller's to fix (409), rejected payloads are 422,
// provider auth failures and transient outages surface as gateway errors so
// campaign callers can tell retryable from not.
func writeError(w http.ResponseWriter, err error) {
	var (
		configErr    *mailer.ConfigError
		accountErr   *mailer.AccountStateError
		authErr      *mailer.AuthError
		transientErr *mailer.TransientError
		permanentErr *mailer.PermanentError
	)

	status := http.StatusInternalServerError
	kind := "internal"
	switch {
	case errors.As(err, &accountErr):
		status = http.StatusConflict
		kind = "account_state"
	case errors.As(err, &authErr):
		status = http.StatusBadGateway
		kind = "auth"
	case errors.As(err, &transientErr):
		status = http.StatusServiceUnavailable
		kind = "transient"
	case errors.As(err, &permanentErr):
		status = http.StatusUnprocessableEntity
		kind = "permanent"
	case errors.As(err, &configErr):
		status = http.StatusInternalServerError
		kind = "configuration"
	}

	log.Printf("⚠️ Request failed (%s): %v", kind, err)
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  kind,
	})
}
