package tenancy

import "context"

// ctxKey is an unexported type used as the context key for TenantContext.
type ctxKey struct{}

// TenantContext carries the resolved merchant and operator identity through
// request context.
type TenantContext struct {
	// Merchant is the tenant boundary every core entity is scoped by.
	Merchant string
	// Operator is the acting principal recorded on publish/revoke history.
	Operator string
	// PlatformOperator marks the distinguished cross-tenant capability.
	// Regular operators are pinned to their own merchant.
	PlatformOperator bool
}

// WithTenant returns a new context with the given TenantContext attached.
func WithTenant(ctx context.Context, tc TenantContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// TenantFromContext retrieves the TenantContext from the context.
// Returns the zero value and false if no tenant is set.
func TenantFromContext(ctx context.Context) (TenantContext, bool) {
	tc, ok := ctx.Value(ctxKey{}).(TenantContext)
	return tc, ok
}

// MerchantFromContext is a convenience function that returns the merchant
// from the context, or "" if no tenant context is set.
func MerchantFromContext(ctx context.Context) string {
	tc, ok := TenantFromContext(ctx)
	if !ok {
		return ""
	}
	return tc.Merchant
}

// OperatorFromContext returns the acting operator from the context, or
// "system" if no tenant context is set.
func OperatorFromContext(ctx context.Context) string {
	tc, ok := TenantFromContext(ctx)
	if !ok || tc.Operator == "" {
		return "system"
	}
	return tc.Operator
}

// CanAccess reports whether the request context may touch data belonging to
// the given merchant. Platform operators may cross tenant lines; everyone
// else is confined to their own merchant.
func (tc TenantContext) CanAccess(merchant string) bool {
	if tc.PlatformOperator {
		return true
	}
	return tc.Merchant == merchant
}
