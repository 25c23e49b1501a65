package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPSenderSend(t *testing.T) {
	var gotRecipient, gotText, gotFrom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostFormValue("apiKey") != "test-key" {
			t.Fatalf("missing api key in request")
		}
		gotRecipient = r.PostFormValue("recipient")
		gotText = r.PostFormValue("text")
		gotFrom = r.PostFormValue("from")
		_, _ = w.Write([]byte(`{"code":0,"data":{"messageId":"m1"}}`))
	}))
	defer srv.Close()

	sender, err := NewHTTPSender(srv.URL, "test-key", "ACME", time.Second)
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	if err := sender.Send(context.Background(), "12312123", "Your verification code is 654321."); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if gotRecipient != "12312123" || gotText != "Your verification code is 654321." || gotFrom != "ACME" {
		t.Fatalf("unexpected form values: recipient=%q text=%q from=%q", gotRecipient, gotText, gotFrom)
	}
}

func TestHTTPSenderGatewayErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":8}`))
	}))
	defer srv.Close()

	sender, err := NewHTTPSender(srv.URL, "test-key", "", time.Second)
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	if err := sender.Send(context.Background(), "12312123", "hola"); err == nil {
		t.Fatalf("expected error for non-zero gateway code")
	}
}

func TestHTTPSenderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	sender, err := NewHTTPSender(srv.URL, "test-key", "", time.Second)
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	if err := sender.Send(context.Background(), "12312123", "hola"); err == nil {
		t.Fatalf("expected error for http failure status")
	}
}

func TestNewHTTPSenderValidation(t *testing.T) {
	if _, err := NewHTTPSender("", "key", "", time.Second); err == nil {
		t.Fatalf("expected error for empty gateway url")
	}
	if _, err := NewHTTPSender("http://gateway", "", "", time.Second); err == nil {
		t.Fatalf("expected error for empty api key")
	}
}
