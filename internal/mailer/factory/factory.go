// Package factory resolves which email account and transport provider serve a
// send, decrypting the account's persisted credentials and wiring the token
// persistence callback for OAuth mailboxes.
package factory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/recruitforge/outmail/internal/db/models"
	"github.com/recruitforge/outmail/internal/mailer"
	"github.com/recruitforge/outmail/internal/mailer/gmail"
	"github.com/recruitforge/outmail/internal/mailer/msgraph"
	"github.com/recruitforge/outmail/internal/mailer/resend"
	"github.com/recruitforge/outmail/internal/mailer/smtpout"
	"github.com/recruitforge/outmail/internal/mailer/token"
	"github.com/recruitforge/outmail/internal/secrets"
	"gorm.io/gorm"
)

// OAuthCredentials carries the per-provider OAuth application credentials
// from process configuration. Absence surfaces as a ConfigError when an
// account of the matching type is resolved, never as a mid-send failure.
type OAuthCredentials struct {
	GoogleClientID        string
	GoogleClientSecret    string
	MicrosoftClientID     string
	MicrosoftClientSecret string
	MicrosoftTenantID     string
}

// Factory constructs transport providers from persisted accounts. Secrets are
// read fresh on every resolution; the persisted blob is the single source of
// truth.
type Factory struct {
	db     *gorm.DB
	cipher secrets.Cipher
	creds  OAuthCredentials
}

// New creates a factory over the given store, cipher and OAuth credentials.
func New(db *gorm.DB, cipher secrets.Cipher, creds OAuthCredentials) *Factory {
	return &Factory{db: db, cipher: cipher, creds: creds}
}

// ProviderFor resolves the provider for an explicit account id. Fails with an
// AccountStateError when the account is missing or not active.
func (f *Factory) ProviderFor(ctx context.Context, accountID string) (mailer.Provider, error) {
	var account models.EmailAccount
	if err := f.db.WithContext(ctx).First(&account, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &mailer.AccountStateError{AccountID: accountID, Reason: "account not found"}
		}
		return nil, fmt.Errorf("load account %s: %w", accountID, err)
	}
	if account.Status != models.StatusActive {
		return nil, &mailer.AccountStateError{AccountID: accountID, Reason: "account is " + account.Status}
	}
	return f.build(ctx, &account)
}

// DefaultFor resolves a company's default sending account and its provider.
// Resolution order: the active default account (most recently updated wins
// when legacy rows disagree), else the first active ESP account, else the
// first active account of any type. The account is returned so callers can
// stamp its from identity onto outgoing messages.
func (f *Factory) DefaultFor(ctx context.Context, companyID string) (mailer.Provider, *models.EmailAccount, error) {
	account, err := f.resolveDefault(ctx, companyID)
	if err != nil {
		return nil, nil, err
	}
	provider, err := f.build(ctx, account)
	if err != nil {
		return nil, nil, err
	}
	return provider, account, nil
}

func (f *Factory) resolveDefault(ctx context.Context, companyID string) (*models.EmailAccount, error) {
	var account models.EmailAccount

	err := f.db.WithContext(ctx).
		Where("company_id = ? AND status = ? AND is_default = ?", companyID, models.StatusActive, true).
		Order("updated_at DESC").
		First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("resolve default account for company %s: %w", companyID, err)
	}

	err = f.db.WithContext(ctx).
		Where("company_id = ? AND status = ? AND type = ?", companyID, models.StatusActive, models.TypeESP).
		Order("created_at ASC").
		First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("resolve esp account for company %s: %w", companyID, err)
	}

	err = f.db.WithContext(ctx).
		Where("company_id = ? AND status = ?", companyID, models.StatusActive).
		Order("created_at ASC").
		First(&account).Error
	if err == nil {
		return &account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("resolve account for company %s: %w", companyID, err)
	}

	return nil, &mailer.AccountStateError{CompanyID: companyID, Reason: "no active email accounts"}
}

// build dispatches on the closed account type set to the matching transport.
func (f *Factory) build(ctx context.Context, account *models.EmailAccount) (mailer.Provider, error) {
	var secret models.EmailSecret
	if err := f.db.WithContext(ctx).First(&secret, "account_id = ?", account.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &mailer.AccountStateError{AccountID: account.ID, Reason: "account has no stored credentials"}
		}
		return nil, fmt.Errorf("load secret for account %s: %w", account.ID, err)
	}

	plaintext, err := f.cipher.Decrypt(secret.Ciphertext)
	if err != nil {
		return nil, &mailer.ConfigError{Reason: fmt.Sprintf("decrypt secret for account %s: %v", account.ID, err)}
	}

	switch account.Type {
	case models.TypeGmailOAuth:
		if f.creds.GoogleClientID == "" || f.creds.GoogleClientSecret == "" {
			return nil, &mailer.ConfigError{Reason: "google OAuth client credentials are not configured"}
		}
		tokens, err := parseTokens(account.ID, plaintext)
		if err != nil {
			return nil, err
		}
		refresher := token.NewRefresher(account.ID, "gmail",
			gmail.OAuthConfig(f.creds.GoogleClientID, f.creds.GoogleClientSecret),
			tokens, f.loadTokens(account.ID), f.persistTokens(account.ID))
		return gmail.New(account.ID, refresher), nil

	case models.TypeMicrosoftOAuth:
		if f.creds.MicrosoftClientID == "" || f.creds.MicrosoftClientSecret == "" || f.creds.MicrosoftTenantID == "" {
			return nil, &mailer.ConfigError{Reason: "microsoft OAuth client credentials are not configured"}
		}
		tokens, err := parseTokens(account.ID, plaintext)
		if err != nil {
			return nil, err
		}
		refresher := token.NewRefresher(account.ID, "microsoft",
			msgraph.OAuthConfig(f.creds.MicrosoftClientID, f.creds.MicrosoftClientSecret, f.creds.MicrosoftTenantID),
			tokens, f.loadTokens(account.ID), f.persistTokens(account.ID))
		return msgraph.New(account.ID, refresher), nil

	case models.TypeSMTP:
		var creds smtpout.Credentials
		if err := json.Unmarshal([]byte(plaintext), &creds); err != nil {
			return nil, &mailer.ConfigError{Reason: fmt.Sprintf("malformed smtp secret for account %s: %v", account.ID, err)}
		}
		return smtpout.New(account.ID, creds), nil

	case models.TypeESP:
		var creds resend.Credentials
		if err := json.Unmarshal([]byte(plaintext), &creds); err != nil {
			return nil, &mailer.ConfigError{Reason: fmt.Sprintf("malformed esp secret for account %s: %v", account.ID, err)}
		}
		return resend.New(account.ID, creds.APIKey), nil

	default:
		return nil, &mailer.ConfigError{Reason: fmt.Sprintf("unsupported account type %q", account.Type)}
	}
}

func parseTokens(accountID, plaintext string) (token.TokenSet, error) {
	var tokens token.TokenSet
	if err := json.Unmarshal([]byte(plaintext), &tokens); err != nil {
		return tokens, &mailer.ConfigError{Reason: fmt.Sprintf("malformed oauth secret for account %s: %v", accountID, err)}
	}
	return tokens, nil
}

// loadTokens returns the callback a refresher uses to re-read the persisted
// token set before refreshing. Each resolution constructs a fresh refresher,
// so without the reload two providers for the same account would each spend
// the refresh token.
func (f *Factory) loadTokens(accountID string) token.LoadFunc {
	return func(ctx context.Context) (token.TokenSet, error) {
		var secret models.EmailSecret
		if err := f.db.WithContext(ctx).First(&secret, "account_id = ?", accountID).Error; err != nil {
			return token.TokenSet{}, fmt.Errorf("load secret: %w", err)
		}
		plaintext, err := f.cipher.Decrypt(secret.Ciphertext)
		if err != nil {
			return token.TokenSet{}, fmt.Errorf("decrypt secret: %w", err)
		}
		var tokens token.TokenSet
		if err := json.Unmarshal([]byte(plaintext), &tokens); err != nil {
			return token.TokenSet{}, fmt.Errorf("parse secret: %w", err)
		}
		return tokens, nil
	}
}

// persistTokens returns the callback invoked after every successful refresh.
// It merges the new token fields into the existing decrypted object,
// re-encrypts and writes back in one read-modify-write transaction, so fields
// outside the token triple survive.
func (f *Factory) persistTokens(accountID string) token.PersistFunc {
	return func(ctx context.Context, tokens token.TokenSet) error {
		return f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var secret models.EmailSecret
			if err := tx.First(&secret, "account_id = ?", accountID).Error; err != nil {
				return fmt.Errorf("load secret: %w", err)
			}

			plaintext, err := f.cipher.Decrypt(secret.Ciphertext)
			if err != nil {
				return fmt.Errorf("decrypt secret: %w", err)
			}

			merged := map[string]interface{}{}
			if err := json.Unmarshal([]byte(plaintext), &merged); err != nil {
				return fmt.Errorf("parse secret: %w", err)
			}
			merged["accessToken"] = tokens.AccessToken
			merged["refreshToken"] = tokens.RefreshToken
			merged["expiresAt"] = tokens.ExpiresAt

			data, err := json.Marshal(merged)
			if err != nil {
				return fmt.Errorf("serialize secret: %w", err)
			}
			blob, err := f.cipher.Encrypt(string(data))
			if err != nil {
				return fmt.Errorf("encrypt secret: %w", err)
			}

			return tx.Model(&models.EmailSecret{}).
				Where("account_id = ?", accountID).
				Update("ciphertext", blob).Error
		})
	}
}
