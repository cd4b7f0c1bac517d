package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packstore/packstore/pkg/domain"
	"github.com/packstore/packstore/pkg/entries"
	"github.com/packstore/packstore/pkg/index"
	"github.com/packstore/packstore/pkg/storage"
)

func newTestServer(t *testing.T) (*mux.Router, *storage.StorageEngine) {
	t.Helper()

	engine := storage.NewStorageEngine()
	localActor := domain.Actor{ID: "local", Role: domain.RoleAdmin}
	manager := index.NewManager(engine, nil)
	syncer := index.NewSynchronizer(engine, manager, localActor, "icons/default.svg", nil)
	engine.RegisterObserver(syncer)

	repo := entries.NewRepository(engine, manager, entries.Config{
		DefaultPack:  "entries",
		DefaultThumb: "icons/default.svg",
		LocalActor:   localActor,
	}, nil)

	router := mux.NewRouter()
	NewHandler(repo).RegisterRoutes(router)
	return router, engine
}

func postEntry(t *testing.T, router *mux.Router, pack string, body map[string]interface{}) domain.Entry {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", fmt.Sprintf("/packs/%s/entries", pack), bytes.NewReader(raw))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var entry domain.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	return entry
}

func TestHandleStoreAndGetById(t *testing.T) {
	router, engine := newTestServer(t)

	entry := postEntry(t, router, "weapons", map[string]interface{}{
		"name": "Iron Sword",
		"type": "weapon",
		"tags": []string{"melee"},
		"data": map[string]interface{}{"damage": "1d8"},
	})
	engine.WaitForObservers()
	assert.NotEmpty(t, entry.ID)

	req := httptest.NewRequest("GET", "/packs/weapons/entries/"+entry.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var got domain.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Iron Sword", got.Name)
	assert.Equal(t, []string{"melee"}, got.Tags)
	assert.NotNil(t, got.Data)
}

func TestHandleStoreInvalidBody(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest("POST", "/packs/weapons/entries", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleStoreMissingData(t *testing.T) {
	router, _ := newTestServer(t)

	raw, _ := json.Marshal(map[string]interface{}{"name": "No Data"})
	req := httptest.NewRequest("POST", "/packs/weapons/entries", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleStoreUnprivilegedActor(t *testing.T) {
	router, _ := newTestServer(t)

	raw, _ := json.Marshal(map[string]interface{}{"name": "X", "data": map[string]interface{}{}})
	req := httptest.NewRequest("POST", "/packs/weapons/entries", bytes.NewReader(raw))
	req.Header.Set("X-Actor-Id", "visitor")
	req.Header.Set("X-Actor-Role", "member")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code, "no relay attached, so unprivileged writes are denied")
}

func TestHandleRetrieveQuery(t *testing.T) {
	router, engine := newTestServer(t)

	postEntry(t, router, "weapons", map[string]interface{}{
		"name": "Iron Sword", "type": "weapon", "data": map[string]interface{}{},
	})
	postEntry(t, router, "weapons", map[string]interface{}{
		"name": "Fireball", "type": "spell", "data": map[string]interface{}{},
	})
	engine.WaitForObservers()

	req := httptest.NewRequest("GET", "/packs/weapons/entries?q=@weapon", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var page domain.PaginationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "Iron Sword", page.Entries[0].Name)
	assert.Equal(t, int64(1), page.Total)
}

func TestHandleRetrieveStructuredFilters(t *testing.T) {
	router, engine := newTestServer(t)

	postEntry(t, router, "weapons", map[string]interface{}{
		"name": "Iron Sword", "tags": []string{"melee"}, "data": map[string]interface{}{},
	})
	postEntry(t, router, "weapons", map[string]interface{}{
		"name": "Iron Bow", "tags": []string{"ranged"}, "data": map[string]interface{}{},
	})
	engine.WaitForObservers()

	req := httptest.NewRequest("GET", "/packs/weapons/entries?tag=ranged", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var page domain.PaginationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "Iron Bow", page.Entries[0].Name)
}

func TestHandleRetrieveNoCriteria(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/packs/weapons/entries", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRetrievePagination(t *testing.T) {
	router, engine := newTestServer(t)

	for _, name := range []string{"Axe", "Bow", "Club"} {
		postEntry(t, router, "weapons", map[string]interface{}{
			"name": name, "data": map[string]interface{}{},
		})
	}
	engine.WaitForObservers()

	req := httptest.NewRequest("GET", "/packs/weapons/entries?q=-%23none&limit=2", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var page domain.PaginationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Entries, 2)
	assert.True(t, page.HasNext)
	assert.Equal(t, int64(3), page.Total)
}

func TestHandleGetByIdNotFound(t *testing.T) {
	router, _ := newTestServer(t)

	postEntry(t, router, "weapons", map[string]interface{}{
		"name": "Iron Sword", "data": map[string]interface{}{},
	})

	req := httptest.NewRequest("GET", "/packs/weapons/entries/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusNotFound, body.Code)
}

func TestHandleDeleteById(t *testing.T) {
	router, engine := newTestServer(t)

	entry := postEntry(t, router, "weapons", map[string]interface{}{
		"name": "Iron Sword", "data": map[string]interface{}{},
	})
	engine.WaitForObservers()

	req := httptest.NewRequest("DELETE", "/packs/weapons/entries/"+entry.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest("GET", "/packs/weapons/entries/"+entry.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleHealth(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
}
