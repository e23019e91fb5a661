package sqlite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

func TestExportImportRoundTrip(t *testing.T) {
	b, reg := setupBackend(t)
	lyt, layt := class(t, reg, "LyphTemplate"), class(t, reg, "LayerTemplate")
	layers := field(t, reg, "LyphTemplate", "layers")

	owner := create(t, b, lyt, map[string]any{"name": "heart"})
	l1 := create(t, b, layt, map[string]any{"thickness": 2.5})
	l2 := create(t, b, layt, nil)
	require.NoError(t, b.AddRelationship(ctx, layers, owner, l1, nil))
	require.NoError(t, b.AddRelationship(ctx, layers, owner, l2, map[string]any{"position": 1.0}))

	dir := t.TempDir()
	require.NoError(t, b.Export(ctx, dir))

	data, err := os.ReadFile(filepath.Join(dir, ResourcesFile))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)

	fresh := NewBackend(reg, nil)
	require.NoError(t, fresh.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	defer fresh.Detach()

	nres, nlinks, err := fresh.Import(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, nres)
	assert.Equal(t, 2, nlinks)

	got := get(t, fresh, lyt, owner)
	assert.Equal(t, "heart", got.Properties["name"])
	assert.Equal(t, []string{l2, l1}, refIDs(got.Relations["layers"]))
	assert.Equal(t, 2.5, get(t, fresh, layt, l1).Properties["thickness"])
}

func TestImportSkipsMalformedLines(t *testing.T) {
	b, reg := setupBackend(t)
	dir := t.TempDir()
	content := `{"id":"r1","class":"Lyph","created_at":"","updated_at":""}
not json
{"id":"","class":"Lyph"}

{"id":"r2","class":"Lyph","fields":{"name":"x"},"created_at":"","updated_at":""}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ResourcesFile), []byte(content), 0o644))

	nres, nlinks, err := b.Import(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, nres)
	assert.Equal(t, 0, nlinks, "missing links file counts as empty")

	all, err := b.GetAllResources(ctx, class(t, reg, "Lyph"))
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestWriteJSONLLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.jsonl")
	require.NoError(t, writeJSONL(path, nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "x.jsonl", entries[0].Name())

	recs, err := readJSONL(path)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
