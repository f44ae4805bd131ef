// Package gmail sends mail through the Gmail API on behalf of a connected
// mailbox, managing the account's OAuth token lifecycle on every send.
package gmail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/recruitforge/outmail/internal/mailer"
	"github.com/recruitforge/outmail/internal/mailer/token"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

const (
	// SendEndpoint is the Gmail API message send endpoint.
	SendEndpoint = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"

	// SendScope authorizes sending mail as the connected user.
	SendScope = "https://www.googleapis.com/auth/gmail.send"

	defaultTimeout = 30 * time.Second
)

// OAuthConfig returns the oauth2 config used for Gmail refresh-grant
// exchanges.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{SendScope},
		Endpoint:     googleoauth.Endpoint,
	}
}

// Provider implements mailer.Provider over the Gmail API.
type Provider struct {
	accountID  string
	refresher  *token.Refresher
	endpoint   string
	httpClient *http.Client
}

// New creates a Gmail provider for one account.
func New(accountID string, refresher *token.Refresher) *Provider {
	return NewWithClient(accountID, refresher, SendEndpoint, nil)
}

// NewWithClient creates a Gmail provider with an explicit endpoint and HTTP
// client.
func NewWithClient(accountID string, refresher *token.Refresher, endpoint string, httpClient *http.Client) *Provider {
	if endpoint == "" {
		endpoint = SendEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Provider{
		accountID:  accountID,
		refresher:  refresher,
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}

func (p *Provider) Name() string { return "gmail" }

func (p *Provider) Capabilities() mailer.Capabilities {
	return mailer.Capabilities{Inbound: true, Webhooks: false, Threading: true}
}

// Send builds the raw MIME message, ensures a fresh access token and posts to
// the Gmail send endpoint. The provider message id is the Gmail-assigned id.
func (p *Provider) Send(ctx context.Context, msg *mailer.Message) (*mailer.SendResult, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	accessToken, err := p.refresher.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	raw := EncodeRaw(BuildMIME(msg, uuid.NewString()))
	payload, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return nil, fmt.Errorf("marshal gmail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create gmail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &mailer.TransientError{Provider: p.Name(), Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, mailer.ClassifyStatus(p.Name(), resp.StatusCode, body)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode gmail response: %w", err)
	}

	return &mailer.SendResult{
		ProviderMessageID: out.ID,
		AcceptedAt:        time.Now().UTC(),
	}, nil
}
