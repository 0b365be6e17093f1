package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisSessionStoreRoundTrip(t *testing.T) {
	redis := miniredis.RunT(t)
	s := NewRedisSessionStore(redis.Addr(), "", time.Minute)

	token, err := s.NewSession("a@example.com")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}

	email, ok, err := s.GetEmailByToken(token)
	if err != nil {
		t.Fatalf("get email: %v", err)
	}
	if !ok || email != "a@example.com" {
		t.Fatalf("unexpected result: ok=%v email=%q", ok, email)
	}

	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, err := s.GetEmailByToken(token); err != nil || ok {
		t.Fatalf("expected token gone after delete, ok=%v err=%v", ok, err)
	}
}

func TestRedisSessionStoreExpires(t *testing.T) {
	redis := miniredis.RunT(t)
	s := NewRedisSessionStore(redis.Addr(), "", time.Minute)

	token, err := s.NewSession("a@example.com")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	redis.FastForward(2 * time.Minute)

	if _, ok, err := s.GetEmailByToken(token); err != nil || ok {
		t.Fatalf("expected expired token to miss, ok=%v err=%v", ok, err)
	}
}

func TestRedisSessionStoreUnknownToken(t *testing.T) {
	redis := miniredis.RunT(t)
	s := NewRedisSessionStore(redis.Addr(), "", time.Minute)

	if _, ok, err := s.GetEmailByToken("nope"); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if err := s.DeleteSession("nope"); err != nil {
		t.Fatalf("delete unknown: %v", err)
	}
}
