package gmail

import (
	"encoding/base64"
	"net/mail"
	"strings"

	"github.com/recruitforge/outmail/internal/mailer"
)

// BuildMIME renders msg as a multipart/alternative RFC 2822 message with a
// text/plain part (when Text is set) and the mandatory text/html part under
// the given boundary.
func BuildMIME(msg *mailer.Message, boundary string) string {
	var b strings.Builder

	from := mail.Address{Name: msg.FromName, Address: msg.From}
	b.WriteString("From: " + from.String() + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/alternative; boundary=\"" + boundary + "\"\r\n")
	if msg.ReplyTo != "" {
		b.WriteString("Reply-To: " + msg.ReplyTo + "\r\n")
	}
	for name, value := range msg.Headers {
		b.WriteString(name + ": " + value + "\r\n")
	}
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

// EncodeRaw encodes a MIME message for the Gmail API's raw field: base64 with
// the URL-safe alphabet and padding stripped.
func EncodeRaw(mime string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(mime))
}
