package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorIs(t *testing.T) {
	nf := NotFound("Lyph", "a")
	assert.True(t, errors.Is(nf, ErrNotFound))
	assert.False(t, errors.Is(nf, ErrInvalid))
	assert.True(t, errors.Is(fmt.Errorf("wrapped: %w", nf), ErrNotFound))

	ro := ReadOnlyField("Lyph", "template")
	assert.True(t, errors.Is(ro, ErrReadOnly))
	assert.Equal(t, http.StatusBadRequest, ro.Status)

	inv := Invalid(nil, "bad %s", "thing")
	assert.Equal(t, "bad thing", inv.Message)
	assert.True(t, errors.Is(inv, ErrInvalid))
}

func TestNotFoundMessage(t *testing.T) {
	err := NotFound("Lyph", "a", "b")
	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.Equal(t, "The specified resources do not exist: Lyph 'a', 'b'.", err.Message)
	assert.Equal(t, []MissingRef{{Class: "Lyph", IDs: []string{"a", "b"}}}, err.Info["missing"])
}

func TestMergeNotFound(t *testing.T) {
	t.Run("all nil", func(t *testing.T) {
		assert.NoError(t, MergeNotFound(nil, nil))
	})

	t.Run("merges classes", func(t *testing.T) {
		err := MergeNotFound(NotFound("Lyph", "b"), nil, NotFound("Layer", "x"), NotFound("Lyph", "a"))
		var de *DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, KindNotFound, de.Kind)
		assert.Equal(t, []MissingRef{
			{Class: "Lyph", IDs: []string{"a", "b"}},
			{Class: "Layer", IDs: []string{"x"}},
		}, de.Info["missing"])
	})

	t.Run("other errors win", func(t *testing.T) {
		boom := errors.New("boom")
		assert.Same(t, boom, MergeNotFound(NotFound("Lyph", "a"), boom))
	})
}

func TestConfigError(t *testing.T) {
	err := Configf("relationship X", "unknown class %q", "Foo")
	assert.True(t, errors.Is(err, ErrConfig))
	assert.Equal(t, `relationship X: unknown class "Foo"`, err.Error())
}

func TestNoLink(t *testing.T) {
	err := NoLink("HasLayer", "a", "b")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "There is no HasLayer relationship between 'a' and 'b'.", err.Error())
}
