package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcb/mcp-context-browser/application/service"
	"github.com/mcb/mcp-context-browser/infrastructure/cache"
	"github.com/mcb/mcp-context-browser/infrastructure/hybrid"
)

type adminFixture struct {
	router   chi.Router
	shutdown *shutdownRecorder
}

type shutdownRecorder struct {
	mu     sync.Mutex
	reason string
}

func (r *shutdownRecorder) call(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reason = reason
}

func (r *shutdownRecorder) called() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason != ""
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	engine := hybrid.NewEngine(hybrid.NewConfig(), nil, nil)
	t.Cleanup(engine.Close)

	indexing := service.NewIndexing(nil, nil, engine, nil, nil, nil, nil, nil, false)
	status := service.NewStatus(indexing, nil, engine, nil)

	recorder := &shutdownRecorder{}
	admin := NewAdmin(status, cache.NewMemoryCache(), func() map[string]any {
		return map[string]any{"events_dropped": 0}
	}, recorder.call, nil)

	router := chi.NewRouter()
	admin.Mount(router)
	return &adminFixture{router: router, shutdown: recorder}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAdmin_Health(t *testing.T) {
	f := newAdminFixture(t)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestAdmin_Ready(t *testing.T) {
	f := newAdminFixture(t)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeEnvelope(t, rec)["status"])
}

func TestAdmin_Metrics(t *testing.T) {
	f := newAdminFixture(t)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, data, "indexing")
	assert.Contains(t, data, "events_dropped")
}

func TestAdmin_IndexingWithCollection(t *testing.T) {
	f := newAdminFixture(t)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/indexing?collection=repo", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Contains(t, data, "collections")
}

func TestAdmin_CacheStats(t *testing.T) {
	f := newAdminFixture(t)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cache/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, "memory", data["backend"])
}

func TestAdmin_ShutdownTriggers(t *testing.T) {
	f := newAdminFixture(t)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/shutdown", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, f.shutdown.called, time.Second, 5*time.Millisecond)
}

func TestAdmin_ErrorEnvelope(t *testing.T) {
	engine := hybrid.NewEngine(hybrid.NewConfig(), nil, nil)
	t.Cleanup(engine.Close)
	indexing := service.NewIndexing(nil, nil, engine, nil, nil, nil, nil, nil, false)
	status := service.NewStatus(indexing, nil, engine, nil)

	admin := NewAdmin(status, nil, nil, nil, nil)
	router := chi.NewRouter()
	admin.Mount(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/shutdown", nil))

	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, "error", body["status"])
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "config", errBody["code"])
	assert.NotEmpty(t, errBody["message"])
}
