package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/querykit/internal/config"
	"github.com/atlekbai/querykit/internal/schema"
)

func newMux(t *testing.T) *http.ServeMux {
	t.Helper()
	r := schema.NewRegistry()
	require.NoError(t, r.LoadModels([]config.ModelConfig{
		{Name: "users", Table: "users"},
		{Name: "orders", Table: "shop_orders", PrimaryKey: "order_id"},
	}))
	mux := http.NewServeMux()
	New(r).Register(mux)
	return mux
}

func get(t *testing.T, mux *http.ServeMux, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealth(t *testing.T) {
	rec, body := get(t, newMux(t), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 2, body["models"])
}

func TestListModels(t *testing.T) {
	rec, body := get(t, newMux(t), "/models")
	assert.Equal(t, http.StatusOK, rec.Code)

	results := body["results"].([]any)
	require.Len(t, results, 2)
	first := results[0].(map[string]any)
	assert.Equal(t, "orders", first["name"])
	assert.Equal(t, "shop_orders", first["table"])
	assert.Equal(t, "order_id", first["primary_key"])
	assert.NotEmpty(t, first["id"])
}

func TestGetModel(t *testing.T) {
	mux := newMux(t)

	rec, body := get(t, mux, "/models/users")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "users", body["table"])
	assert.NotContains(t, body, "primary_key")

	rec, body = get(t, mux, "/models/ghosts")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.Equal(t, "ghosts", body["details"])
}
