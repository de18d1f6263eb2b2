package registry

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfleet/fleet-registry/pkg/tenancy"
)

// newTestServer mounts the admin and device routers behind merchant-mode
// tenancy middleware, the same shape the server binary uses.
func newTestServer(t *testing.T) (*testEnv, *httptest.Server) {
	t.Helper()
	env := newTestEnv(t)

	mw := tenancy.NewMiddleware(tenancy.ModeMerchant, tenancy.HeaderOperatorExtractor("platform-operator"))

	root := chi.NewRouter()
	root.Route("/api/v1", func(r chi.Router) {
		r.Use(mw)
		r.Mount("/", NewAdminRouter(env.types, env.versions, env.ledger, env.devices))
	})
	root.Route("/File", func(r chi.Router) {
		r.Use(mw)
		r.Mount("/", NewDeviceRouter(env.resolver, env.versions, env.devices, nil, nil))
	})

	srv := httptest.NewServer(root)
	t.Cleanup(srv.Close)
	return env, srv
}

func adminRequest(t *testing.T, srv *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("X-Merchant", "M1")
	req.Header.Set("X-Operator", "alice")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func deviceGet(t *testing.T, srv *httptest.Server, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestHandlers_TypeLifecycle(t *testing.T) {
	_, srv := newTestServer(t)

	resp := adminRequest(t, srv, http.MethodPost, "/api/v1/types", map[string]string{
		"typeCode": "PZB", "name": "price table",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created artifactTypeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.Equal(t, "PZB", created.TypeCode)
	assert.Equal(t, "alice", created.CreatedBy)

	// Duplicate registration conflicts.
	resp = adminRequest(t, srv, http.MethodPost, "/api/v1/types", map[string]string{
		"typeCode": "PZB", "name": "price table",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = adminRequest(t, srv, http.MethodGet, "/api/v1/types", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Types []artifactTypeResponse `json:"types"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	resp.Body.Close()
	assert.Len(t, listed.Types, 1)

	resp = adminRequest(t, srv, http.MethodDelete, "/api/v1/types/PZB", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = adminRequest(t, srv, http.MethodDelete, "/api/v1/types/PZB", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlers_VersionEndpoints(t *testing.T) {
	_, srv := newTestServer(t)

	resp := adminRequest(t, srv, http.MethodPost, "/api/v1/types", map[string]string{
		"typeCode": "PZB", "name": "price table",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	payload := base64.StdEncoding.EncodeToString([]byte("fare data"))
	resp = adminRequest(t, srv, http.MethodPost, "/api/v1/versions", map[string]string{
		"typeCode": "PZB", "parameter": "0100", "versionTag": "0001", "payload": payload,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created artifactVersionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.Equal(t, "PZB0100", created.FullKey)
	assert.NotEmpty(t, created.Checksum)

	// Payload must be base64.
	resp = adminRequest(t, srv, http.MethodPost, "/api/v1/versions", map[string]string{
		"typeCode": "PZB", "parameter": "0100", "versionTag": "0002", "payload": "not base64!!",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown type.
	resp = adminRequest(t, srv, http.MethodPost, "/api/v1/versions", map[string]string{
		"typeCode": "XXX", "parameter": "0100", "versionTag": "0001", "payload": payload,
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// fullKey is mandatory on listings.
	resp = adminRequest(t, srv, http.MethodGet, "/api/v1/versions", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = adminRequest(t, srv, http.MethodGet, "/api/v1/versions?fullKey=PZB0100", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Versions []artifactVersionResponse `json:"versions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	resp.Body.Close()
	require.Len(t, listed.Versions, 1)

	resp = adminRequest(t, srv, http.MethodDelete, "/api/v1/versions/"+created.ID, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHandlers_DeleteVersionCrossTenant(t *testing.T) {
	env, srv := newTestServer(t)
	v := env.mustVersion(t, "M2", "PZB", "0100", "0001", []byte("payload"))

	// Caller is scoped to M1; M2's version is off limits.
	resp := adminRequest(t, srv, http.MethodDelete, "/api/v1/versions/"+v.ID, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandlers_PublishAndRevoke(t *testing.T) {
	env, srv := newTestServer(t)
	v := env.mustVersion(t, "M1", "PZB", "0100", "0001", []byte("payload"))

	resp := adminRequest(t, srv, http.MethodPost, "/api/v1/publish", map[string]string{
		"versionId": v.ID, "targetLevel": "line", "targetKey": "01",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var assignment assignmentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&assignment))
	resp.Body.Close()
	assert.Equal(t, "0001", assignment.VersionTag)
	assert.Equal(t, "alice", assignment.Operator)

	// Unknown target level.
	resp = adminRequest(t, srv, http.MethodPost, "/api/v1/publish", map[string]string{
		"versionId": v.ID, "targetLevel": "galaxy", "targetKey": "01",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown version.
	resp = adminRequest(t, srv, http.MethodPost, "/api/v1/publish", map[string]string{
		"versionId": "nope", "targetLevel": "line", "targetKey": "01",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = adminRequest(t, srv, http.MethodGet, "/api/v1/assignments?fullKey=PZB0100", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var assignments struct {
		Assignments []assignmentResponse `json:"assignments"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&assignments))
	resp.Body.Close()
	assert.Len(t, assignments.Assignments, 1)

	resp = adminRequest(t, srv, http.MethodPost, "/api/v1/revoke", map[string]string{
		"fullKey": "PZB0100", "targetLevel": "line", "targetKey": "01",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Second revoke finds nothing.
	resp = adminRequest(t, srv, http.MethodPost, "/api/v1/revoke", map[string]string{
		"fullKey": "PZB0100", "targetLevel": "line", "targetKey": "01",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = adminRequest(t, srv, http.MethodGet, "/api/v1/history?fullKey=PZB0100", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history struct {
		History []historyResponse `json:"history"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	resp.Body.Close()
	assert.Len(t, history.History, 2)
}

func TestHandlers_MissingMerchant(t *testing.T) {
	_, srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/types", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeviceEndpoints_GetVer(t *testing.T) {
	env, srv := newTestServer(t)
	v := env.mustVersion(t, "M1", "PZB", "0100", "0001", []byte("payload"))
	_, err := env.ledger.Publish("M1", v.ID, LevelLine, "01", "alice")
	require.NoError(t, err)

	resp, body := deviceGet(t, srv, "/File/GetVer?merchant=M1&file=PZB0100&line=01&machineid=DEV1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0001", body)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	// No assignment means an empty body, not an error.
	resp, body = deviceGet(t, srv, "/File/GetVer?merchant=M1&file=PZB0100&line=02&machineid=DEV9")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "", body)

	// Missing file parameter.
	resp, _ = deviceGet(t, srv, "/File/GetVer?merchant=M1&line=01")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeviceEndpoints_GetVerAndDate(t *testing.T) {
	env, srv := newTestServer(t)
	v := env.mustVersion(t, "M1", "PZB", "0100", "0001", []byte("payload"))
	a, err := env.ledger.Publish("M1", v.ID, LevelLine, "01", "alice")
	require.NoError(t, err)

	resp, body := deviceGet(t, srv, "/File/GetVerAndDate?merchant=M1&file=PZB0100&line=01")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0001"+a.PublishedAt.Format("20060102"), body)
}

func TestDeviceEndpoints_LineFromDeviceRegistry(t *testing.T) {
	env, srv := newTestServer(t)
	v := env.mustVersion(t, "M1", "PZB", "0100", "0001", []byte("payload"))
	_, err := env.ledger.Publish("M1", v.ID, LevelLine, "07", "alice")
	require.NoError(t, err)
	require.NoError(t, env.devices.Upsert(&DeviceRecord{Merchant: "M1", DeviceID: "DEV1", LineID: "07"}))

	// The device sends only its ID; its line comes from the registry feed.
	resp, body := deviceGet(t, srv, "/File/GetVer?merchant=M1&file=PZB0100&machineid=DEV1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "0001", body)
}

func TestAdminAPI_DeviceFeed(t *testing.T) {
	env, srv := newTestServer(t)
	v := env.mustVersion(t, "M1", "PZB", "0100", "0001", []byte("payload"))
	_, err := env.ledger.Publish("M1", v.ID, LevelLine, "07", "alice")
	require.NoError(t, err)

	// The registry feed posts device identities through the admin API.
	resp := adminRequest(t, srv, http.MethodPost, "/api/v1/devices", map[string]string{
		"deviceId": "DEV1", "lineId": "05", "serial": "SN-1",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Re-posting the same device updates its line in place.
	resp = adminRequest(t, srv, http.MethodPost, "/api/v1/devices", map[string]string{
		"deviceId": "DEV1", "lineId": "07", "serial": "SN-1",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = adminRequest(t, srv, http.MethodPost, "/api/v1/devices", map[string]string{"lineId": "07"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = adminRequest(t, srv, http.MethodGet, "/api/v1/devices", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listing struct {
		Devices []struct {
			DeviceID string `json:"deviceId"`
			LineID   string `json:"lineId"`
		} `json:"devices"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	resp.Body.Close()
	require.Len(t, listing.Devices, 1)
	assert.Equal(t, "DEV1", listing.Devices[0].DeviceID)
	assert.Equal(t, "07", listing.Devices[0].LineID)

	// A machineid-only poll now resolves through the registered line.
	getResp, body := deviceGet(t, srv, "/File/GetVer?merchant=M1&file=PZB0100&machineid=DEV1")
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
	assert.Equal(t, "0001", body)
}

func TestDeviceEndpoints_Down(t *testing.T) {
	env, srv := newTestServer(t)
	payload := []byte("raw fare bytes")
	env.mustVersion(t, "M1", "PZB", "0100", "0001", payload)

	resp, body := deviceGet(t, srv, "/File/Down?merchant=M1&file=PZB0100&ver=0001")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(payload), body)
	assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))

	// Unknown tag.
	resp, _ = deviceGet(t, srv, "/File/Down?merchant=M1&file=PZB0100&ver=9999")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Another merchant cannot reach it.
	resp, _ = deviceGet(t, srv, "/File/Down?merchant=M2&file=PZB0100&ver=0001")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Missing parameters.
	resp, _ = deviceGet(t, srv, "/File/Down?merchant=M1&file=PZB0100")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlers_TypesPagination(t *testing.T) {
	_, srv := newTestServer(t)
	for i := 0; i < 5; i++ {
		resp := adminRequest(t, srv, http.MethodPost, "/api/v1/types", map[string]string{
			"typeCode": fmt.Sprintf("T%02d", i), "name": "type",
		})
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := adminRequest(t, srv, http.MethodGet, "/api/v1/types?pageSize=3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		Types         []artifactTypeResponse `json:"types"`
		NextPageToken string                 `json:"nextPageToken"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	resp.Body.Close()
	assert.Len(t, page.Types, 3)
	require.NotEmpty(t, page.NextPageToken)

	resp = adminRequest(t, srv, http.MethodGet, "/api/v1/types?pageSize=3&pageToken="+page.NextPageToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page.Types = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	resp.Body.Close()
	assert.Len(t, page.Types, 2)
	assert.Empty(t, page.NextPageToken)
}
