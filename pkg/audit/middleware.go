package audit

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/openfleet/fleet-registry/pkg/tenancy"
)

// responseCapture wraps http.ResponseWriter to capture the status code.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// Middleware records admin write actions after the handler completes. Reads
// pass through unrecorded; the device poll path should never go through
// this. Writes are best-effort: a failed audit insert never fails the
// request.
func Middleware(store *Store, cfg *Config, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg == nil || !cfg.Enabled || store == nil || !isWriteMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			startTime := time.Now()
			capture := &responseCapture{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(capture, r)

			outcome := outcomeFromStatus(capture.statusCode)
			if outcome == "denied" && !cfg.LogDenied {
				return
			}

			ctx := r.Context()
			event := &EventRecord{
				ID:         uuid.New().String(),
				Merchant:   tenancy.MerchantFromContext(ctx),
				Operator:   tenancy.OperatorFromContext(ctx),
				RequestID:  middleware.GetReqID(ctx),
				Method:     r.Method,
				Path:       r.URL.Path,
				Resource:   extractResource(r.URL.Path),
				Action:     actionVerb(r.Method, r.URL.Path),
				Outcome:    outcome,
				StatusCode: capture.statusCode,
				DurationMS: time.Since(startTime).Milliseconds(),
				CreatedAt:  startTime,
			}

			if err := store.Append(event); err != nil {
				logger.Error("failed to write audit event", "error", err, "requestID", event.RequestID)
			}
		})
	}
}

func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func outcomeFromStatus(status int) string {
	switch {
	case status == http.StatusForbidden:
		return "denied"
	case status >= 200 && status < 300:
		return "success"
	default:
		return "error"
	}
}

// extractResource returns the resource segment of an admin path. Typical
// patterns:
//
//	/api/v1/types/{typeCode}
//	/api/v1/versions/{id}
//	/api/v1/publish
//	/api/v1/lifecycle/contents/{id}/submit
func extractResource(path string) string {
	for _, p := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		switch p {
		case "types", "versions", "publish", "revoke", "assignments", "history", "contents":
			return p
		}
	}
	return ""
}

// actionVerb maps a method and path to a short action name. State-machine
// endpoints use their final path segment (submit, publish, copy).
func actionVerb(method, path string) string {
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	last := parts[len(parts)-1]
	switch last {
	case "submit", "publish", "revoke", "copy":
		return last
	}

	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	return strings.ToLower(method)
}
