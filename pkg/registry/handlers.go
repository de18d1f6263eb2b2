package registry

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openfleet/fleet-registry/pkg/tenancy"
)

// artifactTypeResponse is the API shape of a catalog entry.
type artifactTypeResponse struct {
	TypeCode  string `json:"typeCode"`
	Name      string `json:"name"`
	CreatedBy string `json:"createdBy,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// artifactVersionResponse is the API shape of a version record. Payload
// bytes are never inlined; devices fetch them via /File/Down.
type artifactVersionResponse struct {
	ID         string `json:"id"`
	TypeCode   string `json:"typeCode"`
	Parameter  string `json:"parameter,omitempty"`
	FullKey    string `json:"fullKey"`
	VersionTag string `json:"versionTag"`
	SizeBytes  int64  `json:"sizeBytes"`
	Checksum   string `json:"checksum"`
	CreatedBy  string `json:"createdBy,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

// assignmentResponse is the API shape of an active publish assignment.
type assignmentResponse struct {
	FullKey     string `json:"fullKey"`
	TargetLevel string `json:"targetLevel"`
	TargetKey   string `json:"targetKey"`
	VersionTag  string `json:"versionTag"`
	SizeBytes   int64  `json:"sizeBytes"`
	Checksum    string `json:"checksum"`
	PublishedAt string `json:"publishedAt"`
	Operator    string `json:"operator"`
}

// deviceResponse is the API shape of a device registry row.
type deviceResponse struct {
	DeviceID  string `json:"deviceId"`
	LineID    string `json:"lineId,omitempty"`
	Serial    string `json:"serial,omitempty"`
	UpdatedAt string `json:"updatedAt"`
}

// historyResponse is the API shape of an audit trail row.
type historyResponse struct {
	ID          uint64 `json:"id"`
	FullKey     string `json:"fullKey"`
	TargetLevel string `json:"targetLevel"`
	TargetKey   string `json:"targetKey"`
	VersionTag  string `json:"versionTag"`
	Operation   string `json:"operation"`
	Operator    string `json:"operator"`
	Remark      string `json:"remark,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

func registerTypeHandler(types *TypeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())
		operator := tenancy.OperatorFromContext(r.Context())

		var req struct {
			TypeCode string `json:"typeCode"`
			Name     string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		record, err := types.RegisterType(merchant, req.TypeCode, req.Name, operator)
		if err != nil {
			writeRegistryError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, typeToResponse(record))
	}
}

func deleteTypeHandler(types *TypeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())
		typeCode := chi.URLParam(r, "typeCode")

		if err := types.DeleteType(merchant, typeCode); err != nil {
			writeRegistryError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listTypesHandler(types *TypeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())

		records, nextToken, err := types.ListTypes(merchant, pageSize(r), r.URL.Query().Get("pageToken"))
		if err != nil {
			writeRegistryError(w, err)
			return
		}

		items := make([]artifactTypeResponse, len(records))
		for i := range records {
			items[i] = typeToResponse(&records[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"types":         items,
			"nextPageToken": nextToken,
		})
	}
}

func createVersionHandler(versions *VersionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())
		operator := tenancy.OperatorFromContext(r.Context())

		var req struct {
			TypeCode   string `json:"typeCode"`
			Parameter  string `json:"parameter"`
			VersionTag string `json:"versionTag"`
			Payload    string `json:"payload"` // base64
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		payload, err := base64.StdEncoding.DecodeString(req.Payload)
		if err != nil {
			writeError(w, http.StatusBadRequest, "payload must be base64 encoded")
			return
		}

		record, err := versions.CreateVersion(merchant, req.TypeCode, req.Parameter, req.VersionTag, payload, operator)
		if err != nil {
			writeRegistryError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, versionToResponse(record))
	}
}

func listVersionsHandler(versions *VersionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())
		fullKey := r.URL.Query().Get("fullKey")
		if fullKey == "" {
			writeError(w, http.StatusBadRequest, "fullKey query parameter is required")
			return
		}

		records, nextToken, err := versions.ListVersions(merchant, fullKey, pageSize(r), r.URL.Query().Get("pageToken"))
		if err != nil {
			writeRegistryError(w, err)
			return
		}

		items := make([]artifactVersionResponse, len(records))
		for i := range records {
			items[i] = versionToResponse(&records[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"versions":      items,
			"nextPageToken": nextToken,
		})
	}
}

func deleteVersionHandler(versions *VersionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, _ := tenancy.TenantFromContext(r.Context())
		id := chi.URLParam(r, "id")

		record, err := versions.GetVersion(id)
		if err != nil {
			writeRegistryError(w, err)
			return
		}
		if record != nil && !tc.CanAccess(record.Merchant) {
			writeError(w, http.StatusForbidden, "version belongs to another merchant")
			return
		}

		if err := versions.SoftDelete(id); err != nil {
			writeRegistryError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func publishHandler(ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())
		operator := tenancy.OperatorFromContext(r.Context())

		var req struct {
			VersionID   string `json:"versionId"`
			TargetLevel string `json:"targetLevel"`
			TargetKey   string `json:"targetKey"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		level, err := ParseTargetLevel(req.TargetLevel)
		if err != nil {
			writeRegistryError(w, err)
			return
		}

		assignment, err := ledger.Publish(merchant, req.VersionID, level, req.TargetKey, operator)
		if err != nil {
			writeRegistryError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, assignmentToResponse(assignment))
	}
}

func revokeHandler(ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())
		operator := tenancy.OperatorFromContext(r.Context())

		var req struct {
			FullKey     string `json:"fullKey"`
			TargetLevel string `json:"targetLevel"`
			TargetKey   string `json:"targetKey"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		level, err := ParseTargetLevel(req.TargetLevel)
		if err != nil {
			writeRegistryError(w, err)
			return
		}

		if err := ledger.Revoke(merchant, req.FullKey, level, req.TargetKey, operator); err != nil {
			writeRegistryError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listAssignmentsHandler(ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())
		fullKey := r.URL.Query().Get("fullKey")
		if fullKey == "" {
			writeError(w, http.StatusBadRequest, "fullKey query parameter is required")
			return
		}

		records, err := ledger.ListAssignments(merchant, fullKey)
		if err != nil {
			writeRegistryError(w, err)
			return
		}

		items := make([]assignmentResponse, len(records))
		for i := range records {
			items[i] = assignmentToResponse(&records[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{"assignments": items})
	}
}

func listHistoryHandler(ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())
		fullKey := r.URL.Query().Get("fullKey")
		if fullKey == "" {
			writeError(w, http.StatusBadRequest, "fullKey query parameter is required")
			return
		}

		records, nextToken, err := ledger.ListHistory(merchant, fullKey, pageSize(r), r.URL.Query().Get("pageToken"))
		if err != nil {
			writeRegistryError(w, err)
			return
		}

		items := make([]historyResponse, len(records))
		for i := range records {
			items[i] = historyToResponse(&records[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"history":       items,
			"nextPageToken": nextToken,
		})
	}
}

func upsertDeviceHandler(devices *DeviceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())

		var req struct {
			DeviceID string `json:"deviceId"`
			LineID   string `json:"lineId"`
			Serial   string `json:"serial"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.DeviceID == "" {
			writeError(w, http.StatusBadRequest, "deviceId is required")
			return
		}

		record := &DeviceRecord{
			Merchant: merchant,
			DeviceID: req.DeviceID,
			LineID:   req.LineID,
			Serial:   req.Serial,
		}
		if err := devices.Upsert(record); err != nil {
			writeRegistryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, deviceToResponse(record))
	}
}

func listDevicesHandler(devices *DeviceStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchant := tenancy.MerchantFromContext(r.Context())

		records, err := devices.List(merchant)
		if err != nil {
			writeRegistryError(w, err)
			return
		}

		items := make([]deviceResponse, len(records))
		for i := range records {
			items[i] = deviceToResponse(&records[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{"devices": items})
	}
}

func typeToResponse(r *ArtifactTypeRecord) artifactTypeResponse {
	return artifactTypeResponse{
		TypeCode:  r.TypeCode,
		Name:      r.Name,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
}

func versionToResponse(r *ArtifactVersionRecord) artifactVersionResponse {
	return artifactVersionResponse{
		ID:         r.ID,
		TypeCode:   r.TypeCode,
		Parameter:  r.Parameter,
		FullKey:    r.FullKey,
		VersionTag: r.VersionTag,
		SizeBytes:  r.SizeBytes,
		Checksum:   r.Checksum,
		CreatedBy:  r.CreatedBy,
		CreatedAt:  r.CreatedAt.Format(time.RFC3339),
	}
}

func assignmentToResponse(r *PublishAssignmentRecord) assignmentResponse {
	return assignmentResponse{
		FullKey:     r.FullKey,
		TargetLevel: r.TargetLevel,
		TargetKey:   r.TargetKey,
		VersionTag:  r.VersionTag,
		SizeBytes:   r.SizeBytes,
		Checksum:    r.Checksum,
		PublishedAt: r.PublishedAt.Format(time.RFC3339),
		Operator:    r.Operator,
	}
}

func deviceToResponse(r *DeviceRecord) deviceResponse {
	return deviceResponse{
		DeviceID:  r.DeviceID,
		LineID:    r.LineID,
		Serial:    r.Serial,
		UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
	}
}

func historyToResponse(r *PublishHistoryRecord) historyResponse {
	return historyResponse{
		ID:          r.ID,
		FullKey:     r.FullKey,
		TargetLevel: r.TargetLevel,
		TargetKey:   r.TargetKey,
		VersionTag:  r.VersionTag,
		Operation:   r.Operation,
		Operator:    r.Operator,
		Remark:      r.Remark,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
}

func pageSize(r *http.Request) int {
	if ps := r.URL.Query().Get("pageSize"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 {
			return v
		}
	}
	return 20
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response with a {message} body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeRegistryError maps a registry error to its HTTP status.
func writeRegistryError(w http.ResponseWriter, err error) {
	writeError(w, HTTPStatus(err), err.Error())
}
