package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/lyphgraph/internal/sqlite"
	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// clearEnv unsets every LYPHGRAPH_ variable for the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if k, _, _ := strings.Cut(kv, "="); strings.HasPrefix(k, envPrefix+"_") {
			t.Setenv(k, "")
			os.Unsetenv(k)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// run executes the root command with args and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoadSettingsPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		flag     string
		wantPort int
	}{
		{"config file", "", "", 9000},
		{"env over file", "9100", "", 9100},
		{"flag over env", "9100", "9200", 9200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			configDir := t.TempDir()
			writeFile(t, filepath.Join(configDir, configFileExt), "host: example\nport: 9000\nlog:\n  level: warn\n")
			if tt.env != "" {
				t.Setenv("LYPHGRAPH_PORT", tt.env)
			}

			f := &rootFlags{configDir: configDir, dataDir: t.TempDir()}
			cmd := newServeCmd(f)
			if tt.flag != "" {
				require.NoError(t, cmd.Flags().Set("port", tt.flag))
			}
			s, err := loadSettings(f, cmd)
			require.NoError(t, err)
			assert.Equal(t, "example", s.Host)
			assert.Equal(t, tt.wantPort, s.Port)
			assert.Equal(t, "http://example:"+strconv.Itoa(tt.wantPort), s.BaseURL)
			assert.Equal(t, "warn", s.Log.Level)
			assert.True(t, s.ConsoleLogging)
			assert.Equal(t, types.BackendSQLite, s.Backend)
		})
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("LYPHGRAPH_LOG_LEVEL", "debug")
	t.Setenv("LYPHGRAPH_BASE_URL", "https://lyph.example.org")

	f := &rootFlags{configDir: t.TempDir(), dataDir: t.TempDir(), schema: "custom.schema"}
	s, err := loadSettings(f, newSchemaCmd(f))
	require.NoError(t, err)
	assert.Equal(t, defaultHost, s.Host)
	assert.Equal(t, defaultPort, s.Port)
	assert.Equal(t, "https://lyph.example.org", s.BaseURL)
	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, "custom.schema", s.Schema)
}

func TestUnknownBackendIsConfigError(t *testing.T) {
	clearEnv(t)
	configDir := t.TempDir()
	writeFile(t, filepath.Join(configDir, configFileExt), "backend: neo4j\n")

	_, err := run(t, "--config-dir", configDir, "--data-dir", t.TempDir(), "schema")
	require.Error(t, err)
	assert.Equal(t, exitConfigError, exitCode(err))
}

func TestBadSchemaIsConfigError(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", "class {"},
		{"undeclared class", "relationship R {\n  A * bs\n  B 1 a\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".schema")
			writeFile(t, path, tt.src)
			_, err := run(t, "--config-dir", dir, "--data-dir", t.TempDir(), "--schema", path, "routes")
			require.Error(t, err)
			assert.Equal(t, exitConfigError, exitCode(err))
		})
	}
	assert.Equal(t, exitUserError, exitCode(errors.New("other")))
}

func TestInitCommand(t *testing.T) {
	clearEnv(t)
	configDir := filepath.Join(t.TempDir(), "config")
	dataDir := filepath.Join(t.TempDir(), "data")

	out, err := run(t, "--config-dir", configDir, "--data-dir", dataDir, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "lyphgraph initialized in "+dataDir)
	assert.FileExists(t, filepath.Join(dataDir, sqlite.DBFile))

	data, err := os.ReadFile(filepath.Join(configDir, configFileExt))
	require.NoError(t, err)
	var cfg configFile
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, types.BackendSQLite, cfg.Backend)

	out, err = run(t, "--config-dir", configDir, "--data-dir", dataDir, "init")
	require.NoError(t, err)
	assert.NotContains(t, out, "wrote")
}

func TestExportImport(t *testing.T) {
	clearEnv(t)
	configDir := t.TempDir()
	source := t.TempDir()

	f := &rootFlags{configDir: configDir, dataDir: source}
	s, err := loadSettings(f, newExportCmd(f))
	require.NoError(t, err)
	a, err := openApp(context.Background(), s, zap.NewNop().Sugar())
	require.NoError(t, err)
	lyph, err := a.registry.ClassOf("Lyph")
	require.NoError(t, err)
	_, err = a.backend.CreateResource(context.Background(), lyph, types.ResourceInput{Properties: map[string]any{"name": "heart"}})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	snapshot := t.TempDir()
	out, err := run(t, "--config-dir", configDir, "--data-dir", source, "export", snapshot)
	require.NoError(t, err)
	assert.Contains(t, out, "exported to "+snapshot)
	assert.FileExists(t, filepath.Join(snapshot, sqlite.ResourcesFile))

	out, err = run(t, "--config-dir", configDir, "--data-dir", t.TempDir(), "import", snapshot)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 resources and 0 links")
}

func TestSchemaCommand(t *testing.T) {
	clearEnv(t)
	out, err := run(t, "--config-dir", t.TempDir(), "--data-dir", t.TempDir(), "schema")
	require.NoError(t, err)

	var doc schemaDoc
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	byName := map[string]classDoc{}
	for _, c := range doc.Classes {
		byName[c.Name] = c
	}
	require.Contains(t, byName, "Lyph")
	assert.Equal(t, "lyphs", byName["Lyph"].Path)
	assert.Equal(t, "ONE", byName["Lyph"].Relations["template"].Cardinality)
	assert.Equal(t, []string{"materialIn", "lyphTemplate"}, byName["LyphTemplate"].Shortcuts["materialInLyphs"])
	assert.True(t, byName["Resource"].Abstract)

	out, err = run(t, "--config-dir", t.TempDir(), "--data-dir", t.TempDir(), "schema", "--source")
	require.NoError(t, err)
	assert.Contains(t, out, "shortcut LyphTemplate.materialInLyphs")
}

func TestRoutesCommand(t *testing.T) {
	clearEnv(t)
	out, err := run(t, "--config-dir", t.TempDir(), "--data-dir", t.TempDir(), "routes")
	require.NoError(t, err)
	assert.Contains(t, out, "/lyphs/{ids}")
	assert.Contains(t, out, "specificRelationshipByResources")
	assert.Contains(t, out, "find all lyphs that are located in a given layer")
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger(LogSettings{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.NotNil(t, log)

	_, err = newLogger(LogSettings{Level: "loud"})
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lyphgraph v"+Version)
}
