// Package resend sends mail through the Resend HTTP API and exposes the
// sending-domain identity operations consumed by the domain-verification UI.
package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/recruitforge/outmail/internal/mailer"
)

const (
	// DefaultBaseURL is the Resend API root.
	DefaultBaseURL = "https://api.resend.com"

	defaultTimeout = 30 * time.Second
)

// Credentials is the decrypted secret shape for an ESP account.
type Credentials struct {
	APIKey string `json:"apiKey"`
}

// Provider implements mailer.Provider over the Resend API.
type Provider struct {
	accountID  string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates a Resend provider for one account.
func New(accountID, apiKey string) *Provider {
	return NewWithClient(accountID, apiKey, DefaultBaseURL, nil)
}

// NewWithClient creates a Resend provider with an explicit base URL and HTTP
// client.
func NewWithClient(accountID, apiKey, baseURL string, httpClient *http.Client) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Provider{
		accountID:  accountID,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (p *Provider) Name() string { return "resend" }

func (p *Provider) Capabilities() mailer.Capabilities {
	return mailer.Capabilities{Webhooks: true}
}

// Send posts the message to /emails and returns the Resend-assigned id.
func (p *Provider) Send(ctx context.Context, msg *mailer.Message) (*mailer.SendResult, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"from":    formatFrom(msg),
		"to":      []string{msg.To},
		"subject": msg.Subject,
		"html":    msg.HTML,
	}
	if msg.Text != "" {
		payload["text"] = msg.Text
	}
	if msg.ReplyTo != "" {
		payload["reply_to"] = msg.ReplyTo
	}
	if len(msg.Headers) > 0 {
		payload["headers"] = msg.Headers
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := p.do(ctx, http.MethodPost, "/emails", payload, &out); err != nil {
		return nil, err
	}

	return &mailer.SendResult{
		ProviderMessageID: out.ID,
		AcceptedAt:        time.Now().UTC(),
	}, nil
}

// Domain is a Resend sending domain identity.
type Domain struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Status  string         `json:"status"`
	Records []DomainRecord `json:"records,omitempty"`
}

// DomainRecord is one DNS record Resend expects for domain verification.
type DomainRecord struct {
	Record   string `json:"record"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Value    string `json:"value"`
	Status   string `json:"status"`
	Priority int    `json:"priority,omitempty"`
}

// CreateDomain registers a sending domain. Auxiliary capability, not part of
// the send contract.
func (p *Provider) CreateDomain(ctx context.Context, name string) (*Domain, error) {
	var out Domain
	if err := p.do(ctx, http.MethodPost, "/domains", map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDomain fetches a sending domain with its verification records.
func (p *Provider) GetDomain(ctx context.Context, id string) (*Domain, error) {
	var out Domain
	if err := p.do(ctx, http.MethodGet, "/domains/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyDomain triggers a verification pass on a sending domain.
func (p *Provider) VerifyDomain(ctx context.Context, id string) error {
	return p.do(ctx, http.MethodPost, "/domains/"+id+"/verify", nil, nil)
}

// DeleteDomain removes a sending domain.
func (p *Provider) DeleteDomain(ctx context.Context, id string) error {
	return p.do(ctx, http.MethodDelete, "/domains/"+id, nil, nil)
}

func (p *Provider) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal resend payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create resend request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &mailer.TransientError{Provider: p.Name(), Detail: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mailer.ClassifyStatus(p.Name(), resp.StatusCode, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode resend response: %w", err)
		}
	}
	return nil
}

// formatFrom renders "Name <addr>" when a display name is set.
func formatFrom(msg *mailer.Message) string {
	if msg.FromName != "" {
		return fmt.Sprintf("%s <%s>", msg.FromName, msg.From)
	}
	return msg.From
}
