package lifecycle

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openfleet/fleet-registry/pkg/registry"
	"github.com/openfleet/fleet-registry/pkg/tenancy"
)

type contentResponse struct {
	ID              string `json:"id"`
	TypeCode        string `json:"typeCode"`
	Parameter       string `json:"parameter,omitempty"`
	ParentKey       string `json:"parentKey"`
	VersionTag      string `json:"versionTag"`
	Status          string `json:"status"`
	TargetLevel     string `json:"targetLevel,omitempty"`
	TargetKey       string `json:"targetKey,omitempty"`
	Fare            string `json:"fare,omitempty"`
	ExtraParams     string `json:"extraParams,omitempty"`
	Discounts       string `json:"discounts,omitempty"`
	Checksum        string `json:"checksum,omitempty"`
	LinkedVersionID string `json:"linkedVersionId,omitempty"`
	CreatedBy       string `json:"createdBy,omitempty"`
	CreatedAt       string `json:"createdAt"`
	SubmittedAt     string `json:"submittedAt,omitempty"`
	PublishedAt     string `json:"publishedAt,omitempty"`
}

type contentRequest struct {
	TypeCode    string `json:"typeCode"`
	Parameter   string `json:"parameter"`
	TargetLevel string `json:"targetLevel"`
	TargetKey   string `json:"targetKey"`
	Fare        string `json:"fare"`
	ExtraParams string `json:"extraParams"`
	Discounts   string `json:"discounts"`
}

func (r contentRequest) input() ContentInput {
	return ContentInput{
		TypeCode:    r.TypeCode,
		Parameter:   r.Parameter,
		TargetLevel: r.TargetLevel,
		TargetKey:   r.TargetKey,
		Fare:        r.Fare,
		ExtraParams: r.ExtraParams,
		Discounts:   r.Discounts,
	}
}

func createContentHandler(w *Workflow) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())
		operator := tenancy.OperatorFromContext(r.Context())

		var req contentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(rw, http.StatusBadRequest, "invalid request body")
			return
		}

		record, err := w.Create(merchant, req.input(), operator)
		if err != nil {
			writeLifecycleError(rw, err)
			return
		}
		writeJSON(rw, http.StatusCreated, toResponse(record))
	}
}

func updateContentHandler(w *Workflow) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())
		id := chi.URLParam(r, "id")

		var req contentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(rw, http.StatusBadRequest, "invalid request body")
			return
		}

		record, err := w.Update(merchant, id, req.input())
		if err != nil {
			writeLifecycleError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, toResponse(record))
	}
}

func getContentHandler(w *Workflow) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())
		id := chi.URLParam(r, "id")

		record, err := w.Get(merchant, id)
		if err != nil {
			writeLifecycleError(rw, err)
			return
		}
		if record == nil {
			writeError(rw, http.StatusNotFound, "content record not found")
			return
		}
		writeJSON(rw, http.StatusOK, toResponse(record))
	}
}

func listContentsHandler(w *Workflow) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())
		parentKey := r.URL.Query().Get("parentKey")
		if parentKey == "" {
			writeError(rw, http.StatusBadRequest, "parentKey query parameter is required")
			return
		}

		records, err := w.List(merchant, parentKey)
		if err != nil {
			writeLifecycleError(rw, err)
			return
		}

		items := make([]contentResponse, len(records))
		for i := range records {
			items[i] = toResponse(&records[i])
		}
		writeJSON(rw, http.StatusOK, map[string]any{"contents": items})
	}
}

func submitContentHandler(w *Workflow) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())
		operator := tenancy.OperatorFromContext(r.Context())
		id := chi.URLParam(r, "id")

		record, err := w.Submit(merchant, id, operator)
		if err != nil {
			writeLifecycleError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, toResponse(record))
	}
}

func publishContentHandler(w *Workflow) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())
		operator := tenancy.OperatorFromContext(r.Context())
		id := chi.URLParam(r, "id")

		record, err := w.PublishContent(merchant, id, operator)
		if err != nil {
			writeLifecycleError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, toResponse(record))
	}
}

func copyForwardHandler(w *Workflow) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())
		operator := tenancy.OperatorFromContext(r.Context())
		id := chi.URLParam(r, "id")

		record, err := w.CopyForward(merchant, id, operator)
		if err != nil {
			writeLifecycleError(rw, err)
			return
		}
		writeJSON(rw, http.StatusCreated, toResponse(record))
	}
}

func deleteContentHandler(w *Workflow) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())
		id := chi.URLParam(r, "id")

		if err := w.Delete(merchant, id); err != nil {
			writeLifecycleError(rw, err)
			return
		}
		rw.WriteHeader(http.StatusNoContent)
	}
}

func toResponse(r *ContentRecord) contentResponse {
	resp := contentResponse{
		ID:              r.ID,
		TypeCode:        r.TypeCode,
		Parameter:       r.Parameter,
		ParentKey:       r.ParentKey,
		VersionTag:      r.VersionTag,
		Status:          r.Status,
		TargetLevel:     r.TargetLevel,
		TargetKey:       r.TargetKey,
		Fare:            r.Fare,
		ExtraParams:     r.ExtraParams,
		Discounts:       r.Discounts,
		Checksum:        r.Checksum,
		LinkedVersionID: r.LinkedVersionID,
		CreatedBy:       r.CreatedBy,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
	}
	if r.SubmittedAt != nil {
		resp.SubmittedAt = r.SubmittedAt.Format(time.RFC3339)
	}
	if r.PublishedAt != nil {
		resp.PublishedAt = r.PublishedAt.Format(time.RFC3339)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeLifecycleError(w http.ResponseWriter, err error) {
	writeError(w, registry.HTTPStatus(err), err.Error())
}
