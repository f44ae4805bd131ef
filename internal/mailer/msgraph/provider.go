// Package msgraph sends mail through the Microsoft Graph sendMail endpoint on
// behalf of a connected Microsoft 365 mailbox.
package msgraph

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
	"golang.org/x/oauth2/microsoft"
)

const (
	// SendEndpoint is the Graph sendMail endpoint for the token's mailbox.
	SendEndpoint = "https://graph.microsoft.com/v1.0/me/sendMail"

	// SendScope authorizes sending mail; offline_access keeps the refresh
	// token flowing.
	SendScope = "https://graph.microsoft.com/Mail.Send"

	defaultTimeout = 30 * time.Second
)

// OAuthConfig returns the oauth2 config used for Microsoft refresh-grant
// exchanges against the given tenant.
func OAuthConfig(clientID, clientSecret, tenant string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{SendScope, "offline_access"},
		Endpoint:     microsoft.AzureADEndpoint(tenant),
	}
}

// Graph sendMail envelope. Custom headers travel as internetMessageHeaders
// name/value pairs, not MIME headers.
type sendMailRequest struct {
	Message         graphMessage `json:"message"`
	SaveToSentItems bool         `json:"saveToSentItems"`
}

type graphMessage struct {
	Subject                string           `json:"subject"`
	Body                   graphBody        `json:"body"`
	From                   graphRecipient   `json:"from"`
	ToRecipients           []graphRecipient `json:"toRecipients"`
	ReplyTo                []graphRecipient `json:"replyTo,omitempty"`
	InternetMessageHeaders []graphHeader    `json:"internetMessageHeaders,omitempty"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphEmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type graphHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Provider implements mailer.Provider over the Microsoft Graph API.
type Provider struct {
	accountID  string
	refresher  *token.Refresher
	endpoint   string
	httpClient *http.Client
}

// New creates a Microsoft provider for one account.
func New(accountID string, refresher *token.Refresher) *Provider {
	return NewWithClient(accountID, refresher, SendEndpoint, nil)
}

// NewWithClient creates a Microsoft provider with an explicit endpoint and
// HTTP client.
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

func (p *Provider) Name() string { return "microsoft" }

func (p *Provider) Capabilities() mailer.Capabilities {
	return mailer.Capabilities{Inbound: true, Webhooks: false, Threading: true}
}

// Send posts the sendMail envelope. Graph answers 202 with an empty body, so
// the provider message id is synthesized.
func (p *Provider) Send(ctx context.Context, msg *mailer.Message) (*mailer.SendResult, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	accessToken, err := p.refresher.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(buildEnvelope(msg))
	if err != nil {
		return nil, fmt.Errorf("marshal graph payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create graph request: %w", err)
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

	now := time.Now().UTC()
	return &mailer.SendResult{
		ProviderMessageID: synthesizeMessageID(now),
		AcceptedAt:        now,
	}, nil
}

func buildEnvelope(msg *mailer.Message) sendMailRequest {
	m := graphMessage{
		Subject: msg.Subject,
		Body:    graphBody{ContentType: "HTML", Content: msg.HTML},
		From: graphRecipient{EmailAddress: graphEmailAddress{
			Address: msg.From,
			Name:    msg.FromName,
		}},
		ToRecipients: []graphRecipient{
			{EmailAddress: graphEmailAddress{Address: msg.To}},
		},
	}
	if msg.ReplyTo != "" {
		m.ReplyTo = []graphRecipient{
			{EmailAddress: graphEmailAddress{Address: msg.ReplyTo}},
		}
	}
	for name, value := range msg.Headers {
		m.InternetMessageHeaders = append(m.InternetMessageHeaders, graphHeader{Name: name, Value: value})
	}
	return sendMailRequest{Message: m, SaveToSentItems: true}
}

// synthesizeMessageID fabricates a stable-looking id since Graph returns no
// transport-assigned one.
func synthesizeMessageID(at time.Time) string {
	return fmt.Sprintf("graph-%d-%s", at.UnixMilli(), uuid.NewString()[:8])
}
