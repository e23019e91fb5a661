package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/lyphgraph/internal/dispatch"
	"github.com/mesh-intelligence/lyphgraph/internal/errnorm"
	"github.com/mesh-intelligence/lyphgraph/internal/handler"
	"github.com/mesh-intelligence/lyphgraph/internal/registry"
	"github.com/mesh-intelligence/lyphgraph/internal/schema"
	"github.com/mesh-intelligence/lyphgraph/internal/sqlite"
	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

const baseURL = "http://lyph.test"

func loadRegistry(t *testing.T, src string) *registry.Registry {
	t.Helper()
	var (
		s   *schema.Schema
		err error
	)
	if src == "" {
		s, err = schema.Load("")
	} else {
		var doc *schema.Document
		doc, err = schema.Parse("test.schema", src)
		require.NoError(t, err)
		s, err = schema.Compile(doc)
	}
	require.NoError(t, err)
	reg, err := registry.New(s)
	require.NoError(t, err)
	return reg
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerOver(t, nil)
}

// newTestServerOver serves a fresh SQLite backend, wrapped by wrap when it
// is not nil.
func newTestServerOver(t *testing.T, wrap func(types.Storage) types.Storage) *httptest.Server {
	t.Helper()
	reg := loadRegistry(t, "")
	b := sqlite.NewBackend(reg, nil)
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })

	var st types.Storage = b
	if wrap != nil {
		st = wrap(b)
	}
	h := handler.New(st, reg, handler.WithBaseURL(baseURL))
	srv, err := New(reg, dispatch.New(h, reg), errnorm.New(errnorm.WithCodePrefix(sqlite.CodePrefix)), WithErrorLogging(false))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// call sends body as JSON and decodes the JSON response into out, if any.
func call(t *testing.T, ts *httptest.Server, method, path string, body any) (int, any, http.Header) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out any
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out, resp.Header
}

func createVia(t *testing.T, ts *httptest.Server, path string, body map[string]any) string {
	t.Helper()
	status, out, _ := call(t, ts, http.MethodPost, path, body)
	require.Equal(t, http.StatusCreated, status, "%v", out)
	return out.(map[string]any)["id"].(string)
}

func TestResourceLifecycle(t *testing.T) {
	ts := newTestServer(t)

	status, out, hdr := call(t, ts, http.MethodPost, "/lyphs", map[string]any{"name": "heart", "species": "human"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "*", hdr.Get("Access-Control-Allow-Origin"))
	lyph := out.(map[string]any)
	id := lyph["id"].(string)
	assert.Equal(t, baseURL+"/lyphs/"+id, lyph["href"])

	status, out, _ = call(t, ts, http.MethodPost, "/lyphs/"+id, map[string]any{"height": 3})
	require.Equal(t, http.StatusOK, status)
	got := out.([]any)[0].(map[string]any)
	assert.Equal(t, "heart", got["name"])
	assert.EqualValues(t, 3, got["height"])

	status, out, _ = call(t, ts, http.MethodPut, "/lyphs/"+id, map[string]any{"name": "lung"})
	require.Equal(t, http.StatusOK, status)
	got = out.([]any)[0].(map[string]any)
	assert.Equal(t, "lung", got["name"])
	assert.NotContains(t, got, "species")
	assert.NotContains(t, got, "height")

	status, _, _ = call(t, ts, http.MethodDelete, "/lyphs/"+id, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, out, _ = call(t, ts, http.MethodGet, "/lyphs", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, out)
}

func TestRelationshipRoutes(t *testing.T) {
	ts := newTestServer(t)
	lt := createVia(t, ts, "/lyphTemplates", map[string]any{"name": "L1"})
	first := createVia(t, ts, "/layerTemplates", map[string]any{"name": "T1"})
	second := createVia(t, ts, "/layerTemplates", map[string]any{"name": "T2"})

	for _, layer := range []string{first, second} {
		status, _, _ := call(t, ts, http.MethodPut, "/lyphTemplates/"+lt+"/layers/"+layer, nil)
		require.Equal(t, http.StatusNoContent, status)
	}

	status, out, _ := call(t, ts, http.MethodGet, "/lyphTemplates/"+lt+"/layers", nil)
	require.Equal(t, http.StatusOK, status)
	layers := out.([]any)
	require.Len(t, layers, 2)
	assert.Equal(t, first, layers[0].(map[string]any)["id"])
	assert.EqualValues(t, 2, layers[1].(map[string]any)["position"])

	// Move the second layer to the front through the relationship instance.
	status, out, _ = call(t, ts, http.MethodPost, "/layerTemplates/"+second+"/HasLayerTemplate/"+lt, map[string]any{"position": 1})
	require.Equal(t, http.StatusOK, status, "%v", out)
	relID := out.(map[string]any)["id"].(string)
	assert.EqualValues(t, 1, out.(map[string]any)["position"])

	status, out, _ = call(t, ts, http.MethodGet, "/lyphTemplates/"+lt+"/layers", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, second, out.([]any)[0].(map[string]any)["id"])

	status, out, _ = call(t, ts, http.MethodGet, "/HasLayerTemplate/"+relID, nil)
	require.Equal(t, http.StatusOK, status)
	rel := out.([]any)[0].(map[string]any)
	assert.Equal(t, baseURL+"/HasLayerTemplate/"+relID, rel["href"])
	assert.Equal(t, lt, rel["A"].(map[string]any)["id"])

	status, _, _ = call(t, ts, http.MethodDelete, "/lyphTemplates/"+lt+"/layers/"+second, nil)
	require.Equal(t, http.StatusNoContent, status)
	status, out, _ = call(t, ts, http.MethodGet, "/layerTemplates/"+first, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, out.([]any)[0].(map[string]any)["position"])
}

func TestErrorEnvelopes(t *testing.T) {
	ts := newTestServer(t)
	border := createVia(t, ts, "/borders", nil)
	missing := uuid.NewString()

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		status  int
		message string
	}{
		{"malformed id", http.MethodGet, "/lyphs/nope", nil, http.StatusBadRequest, "Invalid 'ids' path parameter"},
		{"malformed id in list", http.MethodGet, "/lyphs/" + missing + ",nope", nil, http.StatusBadRequest, "Invalid 'ids' path parameter"},
		{"body not an object", http.MethodPost, "/lyphs", "[1, 2]", http.StatusBadRequest, "Request body must be a JSON object"},
		{"body not json", http.MethodPost, "/lyphs", "{", http.StatusBadRequest, "Request body is not valid JSON"},
		{"unknown field", http.MethodPost, "/lyphs", map[string]any{"colour": "red"}, http.StatusBadRequest, "Unknown field 'colour' for class Lyph"},
		{"wrong type", http.MethodPost, "/lyphs", map[string]any{"height": "tall"}, http.StatusBadRequest, "Invalid value for field 'height'"},
		{"missing entity", http.MethodGet, "/lyphs/" + missing, nil, http.StatusNotFound, "The specified resources do not exist: Lyph '" + missing + "'."},
		{"self link", http.MethodPut, "/borders/" + border + "/coalescesWith/" + border, nil, http.StatusBadRequest, "An entity cannot be related to itself through CoalescingBorders."},
		{"read-only field", http.MethodPut, "/lyphs/" + missing + "/layers/" + missing, nil, http.StatusBadRequest, "The field 'layers' of Lyph is read-only."},
		{"no route", http.MethodGet, "/organs", nil, http.StatusNotFound, "There is no GET operation on '/organs'."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out, _ := call(t, ts, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			env := out.(map[string]any)
			assert.EqualValues(t, tt.status, env["status"])
			assert.Equal(t, tt.message, env["message"])
		})
	}
}

func TestRelatedRelationshipsRoute(t *testing.T) {
	ts := newTestServer(t)
	lt := createVia(t, ts, "/lyphTemplates", nil)
	other := createVia(t, ts, "/lyphTemplates", nil)
	first := createVia(t, ts, "/layerTemplates", nil)
	second := createVia(t, ts, "/layerTemplates", nil)
	for _, layer := range []string{first, second} {
		status, _, _ := call(t, ts, http.MethodPut, "/lyphTemplates/"+lt+"/layers/"+layer, nil)
		require.Equal(t, http.StatusNoContent, status)
	}

	status, out, _ := call(t, ts, http.MethodGet, "/lyphTemplates/"+lt+"/HasLayerTemplate", nil)
	require.Equal(t, http.StatusOK, status, "%v", out)
	rels := out.([]any)
	require.Len(t, rels, 2)
	for i, layer := range []string{first, second} {
		rel := rels[i].(map[string]any)
		assert.Equal(t, "HasLayerTemplate", rel["class"])
		assert.Equal(t, lt, rel["A"].(map[string]any)["id"])
		assert.Equal(t, layer, rel["B"].(map[string]any)["id"])
		assert.EqualValues(t, i+1, rel["position"])
	}

	status, out, _ = call(t, ts, http.MethodGet, "/layerTemplates/"+second+"/HasLayerTemplate", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, out.([]any), 1)

	status, out, _ = call(t, ts, http.MethodGet, "/lyphTemplates/"+other+"/HasLayerTemplate", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, out)

	status, _, _ = call(t, ts, http.MethodGet, "/lyphTemplates/"+first+"/HasLayerTemplate", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

// failingStorage fails resource creation with a driver error.
type failingStorage struct {
	types.Storage
	err error
}

func (s *failingStorage) CreateResource(context.Context, *types.EntityClass, types.ResourceInput) (string, error) {
	return "", s.err
}

func TestStorageFailureIsOpaque(t *testing.T) {
	driverErr := &sqlite.BackendError{Op: "create resource", Err: errors.New("disk I/O error: secret.db")}
	ts := newTestServerOver(t, func(st types.Storage) types.Storage {
		return &failingStorage{Storage: st, err: driverErr}
	})

	status, out, _ := call(t, ts, http.MethodPost, "/lyphs", map[string]any{"name": "heart"})
	assert.Equal(t, http.StatusInternalServerError, status)
	env := out.(map[string]any)
	assert.EqualValues(t, http.StatusInternalServerError, env["status"])
	assert.Equal(t, errnorm.DatabaseMessage, env["message"])
	assert.NotContains(t, env, "info")

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "disk I/O")
	assert.NotContains(t, string(data), "secret.db")
}

func TestWrongVerbIsNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	lyph := createVia(t, ts, "/lyphs", nil)

	tests := []struct {
		method string
		path   string
		allow  string
	}{
		{"PATCH", "/lyphs", "GET, POST"},
		{http.MethodDelete, "/lyphs", "GET, POST"},
		{"PATCH", "/lyphs/" + lyph, "GET, POST, PUT, DELETE"},
		{http.MethodPost, "/lyphs/" + lyph + "/layers", "GET"},
		{http.MethodPost, "/HasLayer", "GET"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			status, out, hdr := call(t, ts, tt.method, tt.path, nil)
			assert.Equal(t, http.StatusMethodNotAllowed, status)
			assert.Equal(t, tt.allow, hdr.Get("Allow"))
			env := out.(map[string]any)
			assert.EqualValues(t, http.StatusMethodNotAllowed, env["status"])
			assert.Equal(t, tt.allow, env["info"].(map[string]any)["allow"])
		})
	}

	status, _, _ := call(t, ts, "PATCH", "/lyphs/"+lyph+"/organs", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestValidationDetailKeepsQuotes(t *testing.T) {
	ts := newTestServer(t)
	status, out, _ := call(t, ts, http.MethodPost, "/lyphs", map[string]any{`say "hi"`: 1})
	require.Equal(t, http.StatusBadRequest, status)
	info := out.(map[string]any)["info"].(map[string]any)
	assert.Equal(t, `say "hi"`, info["field"])
}

func TestPreflight(t *testing.T) {
	ts := newTestServer(t)
	status, _, hdr := call(t, ts, http.MethodOptions, "/lyphs", nil)
	assert.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, "*", hdr.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, hdr.Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestRoutes(t *testing.T) {
	reg := loadRegistry(t, "")
	routes, err := Routes(reg)
	require.NoError(t, err)

	patterns := map[string]Route{}
	for _, r := range routes {
		patterns[r.Pattern()] = r
	}
	for _, p := range []string{
		"GET /lyphs",
		"POST /lyphs",
		"GET /lyphs/{ids}",
		"DELETE /lyphs/{id}",
		"GET /lyphs/{idA}/externals",
		"PUT /layers/{idA}/coalescesWith/{idB}",
		"GET /lyphTemplates/{idA}/materialInLyphs",
		"POST /layerTemplates/{idA}/HasLayerTemplate/{idB}",
		"GET /clinicalIndices",
		"GET /HasMaterial",
		"PUT /HasMaterial/{id}",
	} {
		assert.Contains(t, patterns, p)
	}
	assert.NotContains(t, patterns, "GET /resources")
	assert.NotContains(t, patterns, "PUT /lyphTemplates/{idA}/materialInLyphs/{idB}")
	assert.Equal(t, "find all lyph templates acting as materials in a given layer template",
		patterns["GET /layerTemplates/{idA}/materials"].Summary)
}

func TestRoutesBothSidesOfOneClass(t *testing.T) {
	reg := loadRegistry(t, `
class Part {}
relationship HasPart {
    Part * parts
    Part 1 whole
}
`)
	routes, err := Routes(reg)
	require.NoError(t, err)

	var sides []int
	for _, r := range routes {
		if r.Path == "/parts/{idA}/HasPart/{idB}" && r.Verb == dispatch.Get {
			sides = append(sides, r.Side)
		}
	}
	assert.Equal(t, []int{0}, sides)
}

func TestRoutesCollision(t *testing.T) {
	reg := loadRegistry(t, `
class Cell {}
class Tissue {}
relationship Link {
    Cell   * Link
    Tissue * cells
}
`)
	_, err := Routes(reg)
	require.Error(t, err)
	var ce *types.ConfigError
	assert.True(t, errors.As(err, &ce))
}
