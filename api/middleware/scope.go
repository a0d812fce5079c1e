package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/purchasing-console/api/responses"
	"github.com/angelmondragon/purchasing-console/pkg/backend"
	pkgerrors "github.com/angelmondragon/purchasing-console/pkg/errors"
	"github.com/angelmondragon/purchasing-console/pkg/logger"
)

const (
	OrganizationHeader = "X-Organization-Id"
	CompanyHeader      = "X-Company-Id"
)

type contextKey string

const ctxScope contextKey = "purchasing_scope"

// ScopeContext resolves the organization and company the request acts for. The caller's
// Authorization header travels with the scope so backend calls run under the caller's identity.
func ScopeContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := backend.Scope{
				OrganizationID: strings.TrimSpace(r.Header.Get(OrganizationHeader)),
				CompanyID:      strings.TrimSpace(r.Header.Get(CompanyHeader)),
				Token:          strings.TrimSpace(r.Header.Get("Authorization")),
			}
			if scope.OrganizationID == "" || scope.CompanyID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "organization and company context required"))
				return
			}

			ctx := WithScope(r.Context(), scope)
			if logg != nil {
				ctx = logg.WithScope(ctx, scope.OrganizationID, scope.CompanyID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithScope injects the purchasing scope into the context.
func WithScope(ctx context.Context, scope backend.Scope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxScope, scope)
}

func ScopeFromContext(ctx context.Context) (backend.Scope, bool) {
	if ctx == nil {
		return backend.Scope{}, false
	}
	scope, ok := ctx.Value(ctxScope).(backend.Scope)
	return scope, ok
}
