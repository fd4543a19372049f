// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrAdminTokenMissing means the request carried no bearer credential.
var ErrAdminTokenMissing = errors.New("auth: admin token missing")

// ErrAdminTokenInvalid means the media server rejected the credential.
var ErrAdminTokenInvalid = errors.New("auth: admin token invalid")

// ErrNotAnAdmin means the credential is valid but the resolved user id is
// not present in the configured allowlist.
var ErrNotAnAdmin = errors.New("auth: user is not an admin")

// TokenValidator exchanges a bearer credential for a media-server user id.
// Callers adapt internal/clients/mediaserver.Client.ValidateToken with
// ValidatorFunc rather than importing the clients package here.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (id string, name string, err error)
}

// ValidatorFunc adapts a plain function to TokenValidator.
type ValidatorFunc func(ctx context.Context, token string) (string, string, error)

// ValidateToken implements TokenValidator.
func (f ValidatorFunc) ValidateToken(ctx context.Context, token string) (string, string, error) {
	return f(ctx, token)
}

// AdminGate authorizes admin-only endpoints by validating the caller's
// media-server session against an allowlist of user ids (§4J). Unlike the
// shared-secret checks in token.go, the admin gate never compares a secret
// locally: the media server itself is the source of truth for identity.
type AdminGate struct {
	validator TokenValidator
	allowlist map[string]struct{}
}

// NewAdminGate builds an AdminGate. allowedUserIDs is the ADMIN_USER_IDS
// configuration value.
func NewAdminGate(validator TokenValidator, allowedUserIDs []string) *AdminGate {
	allow := make(map[string]struct{}, len(allowedUserIDs))
	for _, id := range allowedUserIDs {
		if id != "" {
			allow[id] = struct{}{}
		}
	}
	return &AdminGate{validator: validator, allowlist: allow}
}

// Authorize validates the bearer token carried by r and checks the
// resulting user id against the allowlist. It never logs the raw token.
func (g *AdminGate) Authorize(r *http.Request) (*Principal, error) {
	token := ExtractToken(r, false)
	if token == "" {
		return nil, ErrAdminTokenMissing
	}

	id, name, err := g.validator.ValidateToken(r.Context(), token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAdminTokenInvalid, err)
	}

	if _, ok := g.allowlist[id]; !ok {
		return nil, ErrNotAnAdmin
	}

	return &Principal{ID: id, User: name, Scopes: []string{"admin"}}, nil
}
