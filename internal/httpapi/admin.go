// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/arrwatch/arrwatch/internal/auth"
)

type principalCtxKey struct{}

// requireAdmin gates a route group behind the media-server admin allowlist
// (§4J), stashing the resolved Principal on the request context for
// handlers to read the caller's identity from.
func (a *api) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.deps.AdminGate.Authorize(r)
		if err != nil {
			status := http.StatusForbidden
			if errors.Is(err, auth.ErrAdminTokenMissing) {
				status = http.StatusUnauthorized
			}
			writeError(w, status, err)
			return
		}
		ctx := context.WithValue(r.Context(), principalCtxKey{}, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFromContext(ctx context.Context) *auth.Principal {
	p, _ := ctx.Value(principalCtxKey{}).(*auth.Principal)
	if p == nil {
		return &auth.Principal{ID: "system"}
	}
	return p
}
