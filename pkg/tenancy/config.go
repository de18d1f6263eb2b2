// Package tenancy provides merchant (tenant) context resolution and
// middleware for the fleet registry. It supports single-merchant deployments
// (backward compatible) and merchant-scoped multi-tenant mode.
package tenancy

// TenancyMode controls how merchant context is resolved.
type TenancyMode string

const (
	// ModeSingle uses the "default" merchant for all requests (backward compat).
	ModeSingle TenancyMode = "single"
	// ModeMerchant requires a merchant per request (multi-tenant).
	ModeMerchant TenancyMode = "merchant"
)
