package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCardinality(t *testing.T) {
	tests := []struct {
		token string
		want  Cardinality
	}{
		{"1", One},
		{" 1 ", One},
		{"*", Many},
		{"n", Many},
		{"2", Many},
		{"", Many},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCardinality(tt.token))
		})
	}
}

func TestCardinalityString(t *testing.T) {
	assert.Equal(t, "ONE", One.String())
	assert.Equal(t, "MANY", Many.String())
	assert.Equal(t, "Cardinality(0)", Cardinality(0).String())
}
