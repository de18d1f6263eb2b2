package tenancy

import (
	"fmt"
	"net/http"
	"regexp"
)

// maxMerchantLen is the maximum length for a merchant code.
const maxMerchantLen = 32

// merchantRe validates merchant code format: alphanumeric, dot, underscore
// and hyphen, starting with an alphanumeric character. Merchant codes are
// operator-assigned short identifiers (e.g. "M1", "metro-north").
var merchantRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// MerchantQueryParam is the query parameter name used for merchant resolution.
// Device firmware passes the merchant this way on the read path.
const MerchantQueryParam = "merchant"

// MerchantHeader is the HTTP header used for merchant resolution on the
// admin surface.
const MerchantHeader = "X-Merchant"

// OperatorHeader carries the acting operator principal when no bearer token
// is presented (trusted proxy / development mode).
const OperatorHeader = "X-Operator"

// TenantResolver resolves the tenant context from an HTTP request.
type TenantResolver interface {
	Resolve(r *http.Request) (TenantContext, error)
}

// SingleTenantResolver always returns the "default" merchant. Operator
// identity is still taken from the request.
type SingleTenantResolver struct {
	Operators OperatorExtractor
}

// Resolve always returns a TenantContext with Merchant "default".
func (s SingleTenantResolver) Resolve(r *http.Request) (TenantContext, error) {
	op := extractOperator(s.Operators, r)
	return TenantContext{Merchant: "default", Operator: op.Principal, PlatformOperator: op.Platform}, nil
}

// MerchantTenantResolver reads the merchant from the request query parameter
// or header. In multi-tenant mode the merchant is always required.
type MerchantTenantResolver struct {
	Operators OperatorExtractor
}

// Resolve extracts the merchant from the request. It checks the query
// parameter first, then falls back to the X-Merchant header. Returns an
// error if the merchant is missing or invalid.
func (m MerchantTenantResolver) Resolve(r *http.Request) (TenantContext, error) {
	merchant := r.URL.Query().Get(MerchantQueryParam)
	if merchant == "" {
		merchant = r.Header.Get(MerchantHeader)
	}

	if merchant == "" {
		return TenantContext{}, fmt.Errorf("merchant is required in multi-tenant mode (use ?merchant= query param or X-Merchant header)")
	}

	if err := validateMerchant(merchant); err != nil {
		return TenantContext{}, err
	}

	op := extractOperator(m.Operators, r)
	return TenantContext{Merchant: merchant, Operator: op.Principal, PlatformOperator: op.Platform}, nil
}

// validateMerchant checks that a merchant code is well formed: alphanumeric
// plus ._- separators, 1-32 characters, starting with an alphanumeric.
func validateMerchant(merchant string) error {
	if len(merchant) > maxMerchantLen {
		return fmt.Errorf("merchant %q exceeds maximum length of %d characters", merchant, maxMerchantLen)
	}
	if !merchantRe.MatchString(merchant) {
		return fmt.Errorf("merchant %q is invalid: must consist of alphanumeric characters, dots, underscores or hyphens, and must start with an alphanumeric character", merchant)
	}
	return nil
}

// extractOperator runs the configured extractor, falling back to the
// X-Operator header when none is configured.
func extractOperator(ex OperatorExtractor, r *http.Request) OperatorIdentity {
	if ex != nil {
		return ex(r)
	}
	return HeaderOperatorExtractor("")(r)
}
