package resend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/recruitforge/outmail/internal/mailer"
)

func testMessage() *mailer.Message {
	return &mailer.Message{
		From:     "jobs@hire.example.com",
		FromName: "Hiring",
		To:       "candidate@example.com",
		Subject:  "Offer",
		HTML:     "<p>Congrats</p>",
		Text:     "Congrats",
		ReplyTo:  "replies@hire.example.com",
	}
}

func TestSend_PostsEmailPayload(t *testing.T) {
	var capturedPath, capturedAuth string
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&payload)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"re-42"}`))
	}))
	defer srv.Close()

	p := NewWithClient("acc-1", "re_key", srv.URL, srv.Client())
	result, err := p.Send(context.Background(), testMessage())
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if capturedPath != "/emails" {
		t.Errorf("path = %q", capturedPath)
	}
	if capturedAuth != "Bearer re_key" {
		t.Errorf("auth = %q", capturedAuth)
	}
	if payload["from"] != "Hiring <jobs@hire.example.com>" {
		t.Errorf("from = %v", payload["from"])
	}
	if payload["subject"] != "Offer" || payload["html"] != "<p>Congrats</p>" || payload["text"] != "Congrats" {
		t.Errorf("payload = %v", payload)
	}
	if payload["reply_to"] != "replies@hire.example.com" {
		t.Errorf("reply_to = %v", payload["reply_to"])
	}
	if result.ProviderMessageID != "re-42" {
		t.Fatalf("expected id passthrough, got %q", result.ProviderMessageID)
	}
}

func TestSend_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"bad key", http.StatusUnauthorized, func(err error) bool {
			var e *mailer.AuthError
			return errors.As(err, &e)
		}},
		{"rate limited", http.StatusTooManyRequests, func(err error) bool {
			var e *mailer.TransientError
			return errors.As(err, &e)
		}},
		{"validation failed", http.StatusUnprocessableEntity, func(err error) bool {
			var e *mailer.PermanentError
			return errors.As(err, &e)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"message":"nope"}`))
			}))
			defer srv.Close()

			p := NewWithClient("acc-err", "re_key", srv.URL, srv.Client())
			_, err := p.Send(context.Background(), testMessage())
			if err == nil || !tt.check(err) {
				t.Fatalf("unexpected error kind: %v", err)
			}
		})
	}
}

func TestDomainOperations(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.Method+" "+r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/domains":
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"dom-1","name":"hire.example.com","status":"not_started","records":[{"record":"SPF","name":"send","type":"TXT","value":"v=spf1 ...","status":"not_started"}]}`))
		case r.Method == http.MethodGet && r.URL.Path == "/domains/dom-1":
			w.Write([]byte(`{"id":"dom-1","name":"hire.example.com","status":"verified"}`))
		default:
			w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	p := NewWithClient("acc-1", "re_key", srv.URL, srv.Client())
	ctx := context.Background()

	domain, err := p.CreateDomain(ctx, "hire.example.com")
	if err != nil {
		t.Fatalf("create domain: %v", err)
	}
	if domain.ID != "dom-1" || len(domain.Records) != 1 {
		t.Fatalf("domain = %+v", domain)
	}

	got, err := p.GetDomain(ctx, "dom-1")
	if err != nil {
		t.Fatalf("get domain: %v", err)
	}
	if got.Status != "verified" {
		t.Fatalf("status = %q", got.Status)
	}

	if err := p.VerifyDomain(ctx, "dom-1"); err != nil {
		t.Fatalf("verify domain: %v", err)
	}
	if err := p.DeleteDomain(ctx, "dom-1"); err != nil {
		t.Fatalf("delete domain: %v", err)
	}

	want := []string{
		"POST /domains",
		"GET /domains/dom-1",
		"POST /domains/dom-1/verify",
		"DELETE /domains/dom-1",
	}
	for i, w := range want {
		if i >= len(requests) || requests[i] != w {
			t.Fatalf("request %d = %v, want %q", i, requests, w)
		}
	}
}
