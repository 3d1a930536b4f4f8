package shared

import (
	"context"
	"fmt"
)

// Scope identifies the company and actor a request acts on behalf of.
type Scope struct {
	CompanyID int64
	Actor     string
}

type scopeContextKey struct{}

// ContextWithScope stores the scope in context.
func ContextWithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext extracts the scope from context.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	scope, ok := ctx.Value(scopeContextKey{}).(Scope)
	return scope, ok && scope.CompanyID > 0
}

// RequireCompany rejects operations issued without a company scope.
func RequireCompany(companyID int64) error {
	if companyID <= 0 {
		return fmt.Errorf("%w: company scope required", ErrValidation)
	}
	return nil
}
