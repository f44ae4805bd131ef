// Package token manages the OAuth token lifecycle for mailbox-based email
// providers. Refresh is lazy: freshness is evaluated on every send and the
// refresh-grant exchange runs synchronously when the held access token is
// within the freshness buffer of expiry.
package token

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/recruitforge/outmail/internal/mailer"
	"golang.org/x/oauth2"
)

// FreshnessBuffer is the safety margin against clock skew and in-flight
// latency between the freshness check and the actual API call.
const FreshnessBuffer = 60 * time.Second

// TokenSet is the OAuth credential triple persisted for a mailbox account.
// AccessToken and ExpiresAt are always replaced together; RefreshToken is
// only replaced when the refresh response supplies a new one.
type TokenSet struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// PersistFunc writes refreshed token material back to the secret store. It
// runs before the transport call so the persisted secret is never behind the
// token actually in use.
type PersistFunc func(ctx context.Context, tokens TokenSet) error

// LoadFunc reads the currently persisted token set for the account. It runs
// under the account lock when the held tokens look stale: a refresher is
// constructed per resolution with a snapshot of the secret, so another
// instance for the same account may have refreshed since. Reloading lets this
// instance adopt that result instead of re-spending the refresh token.
type LoadFunc func(ctx context.Context) (TokenSet, error)

// accountLocks serializes refresh per account id across provider instances.
// Two concurrent sends on the same near-expiry account must not both run the
// refresh grant: providers that rotate refresh tokens would invalidate the
// first exchange and corrupt the stored secret.
var accountLocks sync.Map // accountID -> *sync.Mutex

func lockFor(accountID string) *sync.Mutex {
	v, _ := accountLocks.LoadOrStore(accountID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Refresher holds the token lifecycle for one OAuth email account.
type Refresher struct {
	accountID string
	provider  string // provider name for logs and error reporting
	oauth     *oauth2.Config
	load      LoadFunc
	persist   PersistFunc

	mu     *sync.Mutex
	tokens TokenSet
}

// NewRefresher creates a refresher for one account. The oauth config carries
// the provider's client credentials and token endpoint; load re-reads the
// persisted token set (nil disables the reload) and persist receives every
// successful refresh result.
func NewRefresher(accountID, provider string, oauthCfg *oauth2.Config, tokens TokenSet, load LoadFunc, persist PersistFunc) *Refresher {
	return &Refresher{
		accountID: accountID,
		provider:  provider,
		oauth:     oauthCfg,
		load:      load,
		persist:   persist,
		mu:        lockFor(accountID),
		tokens:    tokens,
	}
}

// AccessToken returns an access token valid for at least the freshness
// buffer, performing and persisting a refresh first when needed. A failed
// refresh surfaces as an AuthError and leaves the held tokens untouched.
func (r *Refresher) AccessToken(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.freshLocked() {
		return r.tokens.AccessToken, nil
	}

	// The persisted secret is the source of truth. Another instance for this
	// account may have refreshed while we waited on the lock; adopt its
	// result rather than spending the refresh token again.
	if r.load != nil {
		stored, err := r.load(ctx)
		if err != nil {
			log.Printf("⚠️ Reload of %s tokens for account %s failed: %v", r.provider, r.accountID, err)
		} else {
			r.tokens = stored
			if r.freshLocked() {
				return r.tokens.AccessToken, nil
			}
		}
	}

	if r.tokens.RefreshToken == "" {
		return "", &mailer.AuthError{
			Provider: r.provider,
			Detail:   fmt.Sprintf("account %s has no refresh token", r.accountID),
		}
	}

	log.Printf("🔄 Refreshing %s token for account %s (expired %s)",
		r.provider, r.accountID, r.tokens.ExpiresAt.Format(time.RFC3339))

	src := r.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: r.tokens.RefreshToken})
	newToken, err := src.Token()
	if err != nil {
		log.Printf("❌ Refresh failed for account %s: %v", r.accountID, err)
		return "", &mailer.AuthError{
			Provider: r.provider,
			Detail:   fmt.Sprintf("token refresh failed: %v", err),
			Err:      err,
		}
	}

	refreshed := TokenSet{
		AccessToken:  newToken.AccessToken,
		RefreshToken: r.tokens.RefreshToken,
		ExpiresAt:    newToken.Expiry,
	}
	// Persist rotated refresh token if provided (RFC 6749 compliance)
	if newToken.RefreshToken != "" && newToken.RefreshToken != r.tokens.RefreshToken {
		log.Printf("🔄 Rotating refresh token for account %s", r.accountID)
		refreshed.RefreshToken = newToken.RefreshToken
	}

	if err := r.persist(ctx, refreshed); err != nil {
		return "", fmt.Errorf("persist refreshed token for account %s: %w", r.accountID, err)
	}
	r.tokens = refreshed

	log.Printf("✅ Refreshed %s token for account %s (expires %s)",
		r.provider, r.accountID, refreshed.ExpiresAt.Format(time.RFC3339))
	return r.tokens.AccessToken, nil
}

// Tokens returns a snapshot of the held token set.
func (r *Refresher) Tokens() TokenSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens
}

func (r *Refresher) freshLocked() bool {
	return r.tokens.AccessToken != "" && time.Now().Add(FreshnessBuffer).Before(r.tokens.ExpiresAt)
}
