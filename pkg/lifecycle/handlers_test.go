package lifecycle

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfleet/fleet-registry/pkg/tenancy"
)

func newTestServer(t *testing.T) (*testEnv, *httptest.Server) {
	t.Helper()
	env := newTestEnv(t)

	root := chi.NewRouter()
	root.Use(tenancy.NewMiddleware(tenancy.ModeMerchant, tenancy.HeaderOperatorExtractor("platform-operator")))
	root.Mount("/", NewRouter(env.workflow))

	srv := httptest.NewServer(root)
	t.Cleanup(srv.Close)
	return env, srv
}

func doRequest(t *testing.T, srv *httptest.Server, method, path string, body any) *http.Response {
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

func decodeContent(t *testing.T, resp *http.Response) contentResponse {
	t.Helper()
	defer resp.Body.Close()
	var out contentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestContentEndpoints_FullFlow(t *testing.T) {
	env, srv := newTestServer(t)
	env.mustType(t, "M1", "PZB")

	resp := doRequest(t, srv, http.MethodPost, "/contents", contentRequest{
		TypeCode: "PZB", Parameter: "0100", TargetLevel: "line", TargetKey: "01", Fare: "350",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeContent(t, resp)
	assert.Equal(t, "0001", created.VersionTag)
	assert.Equal(t, string(StatusDraft), created.Status)
	assert.Equal(t, "alice", created.CreatedBy)

	resp = doRequest(t, srv, http.MethodPut, "/contents/"+created.ID, contentRequest{
		TargetLevel: "line", TargetKey: "01", Fare: "380",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeContent(t, resp)
	assert.Equal(t, "380", updated.Fare)

	resp = doRequest(t, srv, http.MethodPost, "/contents/"+created.ID+"/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	submitted := decodeContent(t, resp)
	assert.Equal(t, string(StatusSubmitted), submitted.Status)
	assert.NotEmpty(t, submitted.Checksum)
	assert.NotEmpty(t, submitted.LinkedVersionID)

	// Re-submit conflicts.
	resp = doRequest(t, srv, http.MethodPost, "/contents/"+created.ID+"/submit", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodPost, "/contents/"+created.ID+"/publish", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	published := decodeContent(t, resp)
	assert.Equal(t, string(StatusPublished), published.Status)

	// Devices on the line resolve the published tag immediately.
	tag, err := env.resolver.Resolve("M1", "PZB0100", "DEV1", "01")
	require.NoError(t, err)
	assert.Equal(t, "0001", tag)

	resp = doRequest(t, srv, http.MethodPost, "/contents/"+created.ID+"/copy", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	copied := decodeContent(t, resp)
	assert.Equal(t, "0002", copied.VersionTag)
	assert.Equal(t, string(StatusDraft), copied.Status)

	resp = doRequest(t, srv, http.MethodGet, "/contents?parentKey=PZB0100", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Contents []contentResponse `json:"contents"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	resp.Body.Close()
	assert.Len(t, listed.Contents, 2)

	resp = doRequest(t, srv, http.MethodDelete, "/contents/"+copied.ID, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Published records are kept for audit.
	resp = doRequest(t, srv, http.MethodDelete, "/contents/"+created.ID, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestContentEndpoints_Errors(t *testing.T) {
	_, srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/contents", contentRequest{
		Parameter: "0100", Fare: "350",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/contents/no-such-id", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/contents", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Submitting content whose type was never registered is a missing
	// reference, not a validation error.
	envResp := doRequest(t, srv, http.MethodPost, "/contents", contentRequest{
		TypeCode: "XXX", TargetLevel: "line", TargetKey: "01", Fare: "350",
	})
	require.Equal(t, http.StatusCreated, envResp.StatusCode)
	draft := decodeContent(t, envResp)

	resp = doRequest(t, srv, http.MethodPost, "/contents/"+draft.ID+"/submit", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
