// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAdminGate_Authorize(t *testing.T) {
	validator := ValidatorFunc(func(ctx context.Context, token string) (string, string, error) {
		if token != "good-token" {
			return "", "", errors.New("invalid session")
		}
		return "user-1", "alice", nil
	})

	gate := NewAdminGate(validator, []string{"user-1"})

	r := httptest.NewRequest(http.MethodPost, "http://example.local/api/admin/sync/library", nil)
	r.Header.Set("Authorization", "Bearer good-token")

	p, err := gate.Authorize(r)
	if err != nil {
		t.Fatalf("Authorize() error = %v, want nil", err)
	}
	if p.ID != "user-1" || p.User != "alice" {
		t.Fatalf("Authorize() = %+v, want ID=user-1 User=alice", p)
	}
}

func TestAdminGate_MissingToken(t *testing.T) {
	gate := NewAdminGate(ValidatorFunc(func(context.Context, string) (string, string, error) {
		t.Fatal("validator should not be called without a token")
		return "", "", nil
	}), []string{"user-1"})

	r := httptest.NewRequest(http.MethodPost, "http://example.local/api/admin/sync/library", nil)
	if _, err := gate.Authorize(r); !errors.Is(err, ErrAdminTokenMissing) {
		t.Fatalf("Authorize() error = %v, want ErrAdminTokenMissing", err)
	}
}

func TestAdminGate_InvalidToken(t *testing.T) {
	gate := NewAdminGate(ValidatorFunc(func(context.Context, string) (string, string, error) {
		return "", "", errors.New("session expired")
	}), []string{"user-1"})

	r := httptest.NewRequest(http.MethodPost, "http://example.local/api/admin/sync/library", nil)
	r.Header.Set("Authorization", "Bearer stale-token")

	if _, err := gate.Authorize(r); !errors.Is(err, ErrAdminTokenInvalid) {
		t.Fatalf("Authorize() error = %v, want ErrAdminTokenInvalid", err)
	}
}

func TestAdminGate_NotAnAdmin(t *testing.T) {
	gate := NewAdminGate(ValidatorFunc(func(context.Context, string) (string, string, error) {
		return "user-2", "bob", nil
	}), []string{"user-1"})

	r := httptest.NewRequest(http.MethodPost, "http://example.local/api/admin/sync/library", nil)
	r.Header.Set("Authorization", "Bearer valid-but-not-admin")

	if _, err := gate.Authorize(r); !errors.Is(err, ErrNotAnAdmin) {
		t.Fatalf("Authorize() error = %v, want ErrNotAnAdmin", err)
	}
}
