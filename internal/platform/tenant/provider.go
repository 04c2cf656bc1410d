// Package tenant resolves the local (tenant) a request operates on. Every
// repository read and write is scoped by the local id it supplies.
package tenant

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/comandas/api/internal/platform/requestctx"
)

// ErrNoLocal is returned when no local id can be resolved for an operation.
var ErrNoLocal = errors.New("tenant: no local id in context")

// LocalContextProvider supplies the local id of the current operation.
type LocalContextProvider interface {
	CurrentLocalID(ctx context.Context) (string, error)
}

// ContextProvider resolves the local id from the request context, falling
// back to a fixed default for single-local deployments.
type ContextProvider struct {
	// DefaultLocalID is used when the context carries no local id. Empty
	// means requests must carry the tenant header.
	DefaultLocalID string
}

// CurrentLocalID implements LocalContextProvider.
func (p ContextProvider) CurrentLocalID(ctx context.Context) (string, error) {
	if localID := requestctx.LocalID(ctx); localID != "" {
		return localID, nil
	}
	if p.DefaultLocalID != "" {
		return p.DefaultLocalID, nil
	}
	return "", ErrNoLocal
}

// Middleware copies the tenant header onto the request context so downstream
// services can resolve it through a LocalContextProvider.
func Middleware(header string) func(http.Handler) http.Handler {
	if strings.TrimSpace(header) == "" {
		header = "X-Local-ID"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			localID := strings.TrimSpace(r.Header.Get(header))
			if localID != "" {
				r = r.WithContext(requestctx.WithLocalID(r.Context(), localID))
			}
			next.ServeHTTP(w, r)
		})
	}
}
