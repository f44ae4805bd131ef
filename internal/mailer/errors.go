package mailer

import (
	"fmt"
	"net/http"

	"github.com/recruitforge/outmail/internal/util"
)

// ConfigError indicates required process configuration (OAuth client
// credentials, encryption key) is absent. Raised at provider construction,
// before any network call.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "email configuration error: " + e.Reason
}

// AccountStateError indicates the requested account does not exist or is not
// active. No send is attempted.
type AccountStateError struct {
	AccountID string
	CompanyID string
	Reason    string
}

func (e *AccountStateError) Error() string {
	if e.AccountID != "" {
		return fmt.Sprintf("email account %s: %s", e.AccountID, e.Reason)
	}
	return fmt.Sprintf("company %s: %s", e.CompanyID, e.Reason)
}

// AuthError indicates the token refresh exchange failed or the transport
// rejected the credentials. Not retried automatically.
type AuthError struct {
	Provider string
	Detail   string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s auth error: %s", e.Provider, e.Detail)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// TransientError indicates a server-side (5xx) or rate-limit (429) transport
// failure. Safe to retry with backoff at the caller's discretion.
type TransientError struct {
	Provider   string
	StatusCode int
	Detail     string
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s transient error (status %d): %s", e.Provider, e.StatusCode, e.Detail)
}

// PermanentError indicates the transport rejected the payload itself.
// Retrying without changing the message is pointless.
type PermanentError struct {
	Provider   string
	StatusCode int
	Detail     string
}

func (e *PermanentError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("invalid message: %s", e.Detail)
	}
	return fmt.Sprintf("%s rejected message (status %d): %s", e.Provider, e.StatusCode, e.Detail)
}

// ClassifyStatus maps a non-2xx transport response onto the error taxonomy.
// The raw provider body is carried (truncated) for diagnostics.
func ClassifyStatus(provider string, status int, body []byte) error {
	detail := util.TruncateLog(string(body), 512)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Provider: provider, Detail: fmt.Sprintf("status %d: %s", status, detail)}
	case status == http.StatusTooManyRequests || status >= 500:
		return &TransientError{Provider: provider, StatusCode: status, Detail: detail}
	default:
		return &PermanentError{Provider: provider, StatusCode: status, Detail: detail}
	}
}
