package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openfleet/fleet-registry/pkg/tenancy"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	store := NewStore(db)
	require.NoError(t, store.AutoMigrate())
	return store
}

func seedEvent(t *testing.T, store *Store, merchant string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, store.Append(&EventRecord{
		ID:         merchant + "-" + createdAt.Format(time.RFC3339Nano),
		Merchant:   merchant,
		Operator:   "alice",
		Method:     http.MethodPost,
		Path:       "/api/v1/publish",
		Resource:   "publish",
		Action:     "create",
		Outcome:    "success",
		StatusCode: http.StatusCreated,
		CreatedAt:  createdAt,
	}))
}

func TestStore_ListNewestFirstWithPagination(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		seedEvent(t, store, "M1", base.Add(time.Duration(i)*time.Minute))
	}
	seedEvent(t, store, "M2", base)

	page1, token, err := store.List("M1", 3, "")
	require.NoError(t, err)
	require.Len(t, page1, 3)
	require.NotEmpty(t, token)
	assert.True(t, page1[0].CreatedAt.After(page1[1].CreatedAt))

	page2, token2, err := store.List("M1", 3, token)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Empty(t, token2)

	_, _, err = store.List("M1", 3, "not-a-time")
	assert.Error(t, err)
}

func TestStore_DeleteOlderThan(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	seedEvent(t, store, "M1", now.Add(-48*time.Hour))
	seedEvent(t, store, "M1", now.Add(-30*time.Hour))
	seedEvent(t, store, "M1", now.Add(-time.Hour))

	deleted, err := store.DeleteOlderThan(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, _, err := store.List("M1", 10, "")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func tenantCtx(r *http.Request, merchant, operator string) *http.Request {
	ctx := tenancy.WithTenant(r.Context(), tenancy.TenantContext{
		Merchant: merchant,
		Operator: operator,
	})
	return r.WithContext(ctx)
}

func TestMiddleware_RecordsWrites(t *testing.T) {
	store := newTestStore(t)
	handler := Middleware(store, DefaultConfig(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := tenantCtx(httptest.NewRequest(http.MethodPost, "/api/v1/types", nil), "M1", "alice")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	events, _, err := store.List("M1", 10, "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].Operator)
	assert.Equal(t, "types", events[0].Resource)
	assert.Equal(t, "create", events[0].Action)
	assert.Equal(t, "success", events[0].Outcome)
	assert.Equal(t, http.StatusCreated, events[0].StatusCode)
}

func TestMiddleware_SkipsReads(t *testing.T) {
	store := newTestStore(t)
	handler := Middleware(store, DefaultConfig(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := tenantCtx(httptest.NewRequest(http.MethodGet, "/api/v1/types", nil), "M1", "alice")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	events, _, err := store.List("M1", 10, "")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMiddleware_DeniedGate(t *testing.T) {
	denied := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	store := newTestStore(t)
	cfg := DefaultConfig()
	cfg.LogDenied = false
	handler := Middleware(store, cfg, nil)(denied)
	req := tenantCtx(httptest.NewRequest(http.MethodDelete, "/api/v1/versions/v1", nil), "M1", "alice")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	events, _, err := store.List("M1", 10, "")
	require.NoError(t, err)
	assert.Empty(t, events)

	cfg.LogDenied = true
	handler = Middleware(store, cfg, nil)(denied)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	events, _, err = store.List("M1", 10, "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "denied", events[0].Outcome)
	assert.Equal(t, "delete", events[0].Action)
}

func TestMiddleware_Disabled(t *testing.T) {
	store := newTestStore(t)
	cfg := DefaultConfig()
	cfg.Enabled = false
	handler := Middleware(store, cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := tenantCtx(httptest.NewRequest(http.MethodPost, "/api/v1/types", nil), "M1", "alice")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	events, _, err := store.List("M1", 10, "")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestActionVerb(t *testing.T) {
	assert.Equal(t, "submit", actionVerb(http.MethodPost, "/api/v1/lifecycle/contents/c1/submit"))
	assert.Equal(t, "publish", actionVerb(http.MethodPost, "/api/v1/lifecycle/contents/c1/publish"))
	assert.Equal(t, "create", actionVerb(http.MethodPost, "/api/v1/types"))
	assert.Equal(t, "update", actionVerb(http.MethodPut, "/api/v1/lifecycle/contents/c1"))
	assert.Equal(t, "delete", actionVerb(http.MethodDelete, "/api/v1/versions/v1"))
}

func TestExtractResource(t *testing.T) {
	assert.Equal(t, "contents", extractResource("/api/v1/lifecycle/contents/c1/submit"))
	assert.Equal(t, "publish", extractResource("/api/v1/publish"))
	assert.Equal(t, "", extractResource("/api/v1/unknown"))
}

func TestRouter_ListEvents(t *testing.T) {
	store := newTestStore(t)
	seedEvent(t, store, "M1", time.Now().Add(-time.Minute))

	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, tenantCtx(r, "M1", "alice"))
		})
	}

	srv := httptest.NewServer(mw(NewRouter(store)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Events []eventResponse `json:"events"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Events, 1)
	assert.Equal(t, "publish", body.Events[0].Resource)
}

func TestRetentionWorker_Cleanup(t *testing.T) {
	store := newTestStore(t)
	seedEvent(t, store, "M1", time.Now().Add(-100*24*time.Hour))
	seedEvent(t, store, "M1", time.Now().Add(-time.Hour))

	worker := NewRetentionWorker(store, DefaultConfig(), nil)
	worker.cleanup()

	events, _, err := store.List("M1", 10, "")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRetentionWorker_RunStopsOnCancel(t *testing.T) {
	store := newTestStore(t)
	worker := NewRetentionWorker(store, DefaultConfig(), nil)
	worker.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("FLEET_AUDIT_RETENTION_DAYS", "30")
	t.Setenv("FLEET_AUDIT_LOG_DENIED", "false")
	t.Setenv("FLEET_AUDIT_ENABLED", "false")

	cfg := ConfigFromEnv()
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.False(t, cfg.LogDenied)
	assert.False(t, cfg.Enabled)
}
