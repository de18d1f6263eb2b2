package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openfleet/fleet-registry/pkg/tenancy"
)

type eventResponse struct {
	ID         string `json:"id"`
	Operator   string `json:"operator,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	Resource   string `json:"resource,omitempty"`
	Action     string `json:"action"`
	Outcome    string `json:"outcome"`
	StatusCode int    `json:"statusCode"`
	DurationMS int64  `json:"durationMs"`
	CreatedAt  string `json:"createdAt"`
}

func eventToResponse(e EventRecord) eventResponse {
	return eventResponse{
		ID:         e.ID,
		Operator:   e.Operator,
		RequestID:  e.RequestID,
		Method:     e.Method,
		Path:       e.Path,
		Resource:   e.Resource,
		Action:     e.Action,
		Outcome:    e.Outcome,
		StatusCode: e.StatusCode,
		DurationMS: e.DurationMS,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
	}
}

// NewRouter exposes the merchant's own audit trail, read-only.
func NewRouter(store *Store) chi.Router {
	r := chi.NewRouter()
	r.Get("/events", listEventsHandler(store))
	return r
}

func listEventsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())

		size := 50
		if raw := r.URL.Query().Get("pageSize"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				size = n
			}
		}

		records, nextToken, err := store.List(merchant, size, r.URL.Query().Get("pageToken"))
		if err != nil {
			http.Error(w, "failed to list audit events", http.StatusInternalServerError)
			return
		}

		items := make([]eventResponse, 0, len(records))
		for _, rec := range records {
			items = append(items, eventToResponse(rec))
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"events":        items,
			"nextPageToken": nextToken,
		})
	}
}
