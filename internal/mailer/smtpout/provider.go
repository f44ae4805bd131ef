// Package smtpout sends mail over a direct SMTP connection using per-account
// credentials from the secret store.
package smtpout

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/recruitforge/outmail/internal/mailer"
)

const dialTimeout = 10 * time.Second

// Credentials is the decrypted secret shape for an SMTP account.
type Credentials struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	UseTLS   bool   `json:"useTls"`
}

// Provider implements mailer.Provider over a direct SMTP connection.
// UseTLS selects implicit TLS; otherwise the connection is upgraded with
// STARTTLS when the server offers it.
type Provider struct {
	accountID string
	creds     Credentials
}

// New creates an SMTP provider for one account.
func New(accountID string, creds Credentials) *Provider {
	return &Provider{accountID: accountID, creds: creds}
}

func (p *Provider) Name() string { return "smtp" }

func (p *Provider) Capabilities() mailer.Capabilities {
	return mailer.Capabilities{}
}

// Send dials the configured server and transmits a multipart/alternative
// message. The returned id is the Message-ID header stamped on the envelope;
// SMTP servers do not report one back.
func (p *Provider) Send(ctx context.Context, msg *mailer.Message) (*mailer.SendResult, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(p.creds.Host, strconv.Itoa(p.creds.Port))
	dialer := &net.Dialer{Timeout: dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &mailer.TransientError{Provider: p.Name(), Detail: fmt.Sprintf("dial %s: %v", addr, err)}
	}
	if p.creds.UseTLS {
		conn = tls.Client(conn, &tls.Config{ServerName: p.creds.Host})
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, p.creds.Host)
	if err != nil {
		conn.Close()
		return nil, &mailer.TransientError{Provider: p.Name(), Detail: fmt.Sprintf("smtp handshake: %v", err)}
	}
	defer client.Close()

	if !p.creds.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: p.creds.Host}); err != nil {
				return nil, &mailer.TransientError{Provider: p.Name(), Detail: fmt.Sprintf("starttls: %v", err)}
			}
		}
	}

	if p.creds.Username != "" {
		auth := smtp.PlainAuth("", p.creds.Username, p.creds.Password, p.creds.Host)
		if err := client.Auth(auth); err != nil {
			return nil, &mailer.AuthError{Provider: p.Name(), Detail: fmt.Sprintf("auth failed: %v", err), Err: err}
		}
	}

	if err := client.Mail(msg.From); err != nil {
		return nil, classifySMTP(p.Name(), "mail from", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return nil, classifySMTP(p.Name(), "rcpt to", err)
	}

	now := time.Now().UTC()
	messageID := synthesizeMessageID(msg.From)

	w, err := client.Data()
	if err != nil {
		return nil, classifySMTP(p.Name(), "data", err)
	}
	if _, err := w.Write([]byte(BuildEnvelope(msg, messageID, now, uuid.NewString()))); err != nil {
		return nil, &mailer.TransientError{Provider: p.Name(), Detail: fmt.Sprintf("write body: %v", err)}
	}
	if err := w.Close(); err != nil {
		return nil, classifySMTP(p.Name(), "close data", err)
	}
	client.Quit()

	return &mailer.SendResult{
		ProviderMessageID: messageID,
		AcceptedAt:        now,
	}, nil
}

// BuildEnvelope renders the full RFC 2822 message sent over the DATA command.
func BuildEnvelope(msg *mailer.Message, messageID string, now time.Time, boundary string) string {
	var b strings.Builder

	from := mail.Address{Name: msg.FromName, Address: msg.From}
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("Message-ID: " + messageID + "\r\n")
	b.WriteString("From: " + from.String() + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	if msg.ReplyTo != "" {
		b.WriteString("Reply-To: " + msg.ReplyTo + "\r\n")
	}
	for name, value := range msg.Headers {
		b.WriteString(name + ": " + value + "\r\n")
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/alternative; boundary=\"" + boundary + "\"\r\n")
	b.WriteString("\r\n")

	if msg.Text != "" {
		b.WriteString("--" + boundary + "\r\n")
		b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
		b.WriteString(msg.Text)
		b.WriteString("\r\n\r\n")
	}

	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(msg.HTML)
	b.WriteString("\r\n\r\n")

	b.WriteString("--" + boundary + "--\r\n")
	return b.String()
}

// synthesizeMessageID builds a Message-ID header value scoped to the sender's
// domain.
func synthesizeMessageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at+1 < len(from) {
		domain = from[at+1:]
	}
	return "<" + uuid.NewString() + "@" + domain + ">"
}

// classifySMTP maps SMTP reply codes onto the error taxonomy: 530/535 are
// authentication rejections, 4yz replies are transient, 5yz permanent.
func classifySMTP(provider, op string, err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		detail := fmt.Sprintf("%s: %d %s", op, tpErr.Code, tpErr.Msg)
		switch {
		case tpErr.Code == 530 || tpErr.Code == 535:
			return &mailer.AuthError{Provider: provider, Detail: detail, Err: err}
		case tpErr.Code >= 400 && tpErr.Code < 500:
			return &mailer.TransientError{Provider: provider, StatusCode: tpErr.Code, Detail: detail}
		default:
			return &mailer.PermanentError{Provider: provider, StatusCode: tpErr.Code, Detail: detail}
		}
	}
	return &mailer.TransientError{Provider: provider, Detail: fmt.Sprintf("%s: %v", op, err)}
}
