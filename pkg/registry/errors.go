package registry

import (
	"errors"
	"net/http"
)

// Sentinel error kinds for the registry core. Operations wrap these with
// fmt.Errorf("%w: ...") so callers can classify with errors.Is while the
// message keeps the tenant/key/target context needed to act on the failure.
var (
	// ErrValidation marks malformed or missing required fields.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing type, version, assignment or target.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks duplicate creation, wrong-state transitions and
	// uniqueness violations.
	ErrConflict = errors.New("conflict")
	// ErrTenantBoundary marks a cross-tenant access attempt.
	ErrTenantBoundary = errors.New("tenant boundary violation")
	// ErrStorageUnavailable marks a blob collaborator failure. Callers may
	// retry with backoff; nothing else in this taxonomy is retriable.
	ErrStorageUnavailable = errors.New("blob storage unavailable")
	// ErrIntegrity marks a checksum mismatch on an internally generated
	// version. This is a bug signal, not a user-correctable condition.
	ErrIntegrity = errors.New("integrity check failed")
)

// HTTPStatus maps a registry error to the HTTP status code the admin API
// reports: 400 validation, 403 tenant boundary, 404 missing reference,
// 409 state/uniqueness conflict, 503 storage outage, 500 otherwise.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrTenantBoundary):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
