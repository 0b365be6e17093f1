package store

import (
	"testing"
	"time"
)

func TestJWTSessionStoreRoundTrip(t *testing.T) {
	s, err := NewJWTSessionStore("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	token, err := s.NewSession("a@example.com")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	email, ok, err := s.GetEmailByToken(token)
	if err != nil {
		t.Fatalf("get email: %v", err)
	}
	if !ok || email != "a@example.com" {
		t.Fatalf("unexpected result: ok=%v email=%q", ok, email)
	}
}

func TestJWTSessionStoreRequiresSecret(t *testing.T) {
	if _, err := NewJWTSessionStore("  ", time.Minute); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestJWTSessionStoreRejectsForeignSignature(t *testing.T) {
	a, err := NewJWTSessionStore("secret-a", time.Minute)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	b, err := NewJWTSessionStore("secret-b", time.Minute)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, err := a.NewSession("a@example.com")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, _ := b.GetEmailByToken(token); ok {
		t.Fatalf("expected foreign token to be rejected")
	}
}

func TestJWTSessionStoreRevokesOnDelete(t *testing.T) {
	s, err := NewJWTSessionStore("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, err := s.NewSession("a@example.com")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, _ := s.GetEmailByToken(token); ok {
		t.Fatalf("expected revoked token to be rejected")
	}
}

func TestJWTSessionStoreRejectsGarbage(t *testing.T) {
	s, err := NewJWTSessionStore("test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, ok, _ := s.GetEmailByToken("not-a-jwt"); ok {
		t.Fatalf("expected garbage token to be rejected")
	}
}
