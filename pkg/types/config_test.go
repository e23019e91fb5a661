package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "empty backend returns ErrBackendEmpty",
			config:  Config{Backend: "", DataDir: "/tmp/lyphgraph"},
			wantErr: ErrBackendEmpty,
		},
		{
			name:    "neo4j is not a supported backend",
			config:  Config{Backend: "neo4j", DataDir: "/tmp/lyphgraph"},
			wantErr: ErrBackendUnknown,
		},
		{
			name:   "valid sqlite config",
			config: Config{Backend: BackendSQLite, DataDir: "/tmp/lyphgraph"},
		},
		{
			name:   "sqlite with empty DataDir is valid at config level",
			config: Config{Backend: BackendSQLite},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
