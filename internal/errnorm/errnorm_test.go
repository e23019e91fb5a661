package errnorm

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

type codedError struct{ code string }

func (e codedError) Error() string { return "backend failed: " + e.code }
func (e codedError) Code() string  { return e.code }

func TestNormalize(t *testing.T) {
	n := New(WithCodePrefix("SQLite."))
	notFound := types.NotFound("Lyph", "a")

	tests := []struct {
		name    string
		err     error
		kind    Kind
		status  int
		message string
		info    map[string]any
	}{
		{
			name:    "domain error",
			err:     notFound,
			kind:    KindDomain,
			status:  http.StatusNotFound,
			message: "The specified resources do not exist: Lyph 'a'.",
			info:    notFound.Info,
		},
		{
			name:    "wrapped domain error",
			err:     fmt.Errorf("updating: %w", types.ReadOnlyField("Lyph", "template")),
			kind:    KindDomain,
			status:  http.StatusBadRequest,
			message: "The field 'template' of Lyph is read-only.",
			info:    map[string]any{"class": "Lyph", "field": "template"},
		},
		{
			name:    "validation error",
			err:     errors.New("400 Error: Invalid \"id\" path parameter\nid: \"x\""),
			kind:    KindValidation,
			status:  http.StatusBadRequest,
			message: "Invalid 'id' path parameter",
			info:    map[string]any{"id": "x"},
		},
		{
			name:    "validation error with several messages",
			err:     errors.New("422 Error: first \"a\"\n400 Error: second\nfield: height\nvalue: \"tall\""),
			kind:    KindValidation,
			status:  422,
			message: "first 'a' second",
			info:    map[string]any{"field": "height", "value": "tall"},
		},
		{
			name:    "validation detail with inner quotes",
			err:     errors.New("400 Error: Unknown field \"a\" for class Lyph\nfield: \"say \"hi\" twice\""),
			kind:    KindValidation,
			status:  http.StatusBadRequest,
			message: "Unknown field 'a' for class Lyph",
			info:    map[string]any{"field": `say "hi" twice`},
		},
		{
			name:    "backend error",
			err:     fmt.Errorf("query: %w", codedError{"SQLite.constraint"}),
			kind:    KindBackend,
			status:  http.StatusInternalServerError,
			message: DatabaseMessage,
		},
		{
			name:    "coded error from another vendor",
			err:     codedError{"Neo.ClientError"},
			kind:    KindUnclassified,
			status:  http.StatusInternalServerError,
			message: ServerMessage,
		},
		{
			name:    "anything else",
			err:     errors.New("boom"),
			kind:    KindUnclassified,
			status:  http.StatusInternalServerError,
			message: ServerMessage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := n.Normalize(tt.err)
			require.NotNil(t, env)
			assert.Equal(t, tt.kind, env.Kind())
			assert.Equal(t, tt.status, env.Status)
			assert.Equal(t, tt.message, env.Message)
			if tt.info != nil {
				assert.Equal(t, tt.info, env.Info)
			}
			assert.Equal(t, tt.err, env.Cause())
		})
	}
}

func TestNormalizeNil(t *testing.T) {
	assert.Nil(t, New().Normalize(nil))
}

func TestBackendPrefixIsOptIn(t *testing.T) {
	env := New().Normalize(codedError{"SQLite.busy"})
	assert.Equal(t, KindUnclassified, env.Kind())
}
