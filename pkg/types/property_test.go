package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPropertySpecCheck(t *testing.T) {
	tests := []struct {
		name    string
		vt      ValueType
		value   any
		wantErr error
	}{
		{"string accepts string", ValueString, "x", nil},
		{"string rejects number", ValueString, 3.0, ErrTypeMismatch},
		{"nil always accepted", ValueString, nil, nil},
		{"number accepts float", ValueNumber, 2.5, nil},
		{"number rejects bool", ValueNumber, true, ErrTypeMismatch},
		{"integer accepts whole float", ValueInteger, 4.0, nil},
		{"integer rejects fraction", ValueInteger, 4.5, ErrTypeMismatch},
		{"boolean accepts bool", ValueBoolean, false, nil},
		{"boolean rejects string", ValueBoolean, "true", ErrTypeMismatch},
		{"uri accepts absolute", ValueURI, "http://purl.obolibrary.org/obo/FMA_44515", nil},
		{"uri rejects relative", ValueURI, "FMA_44515", ErrTypeMismatch},
		{"unknown type", ValueType("date"), "x", ErrInvalidValueType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &PropertySpec{Name: "f", Type: tt.vt}
			err := p.Check(tt.value)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestIsValidValueType(t *testing.T) {
	assert.True(t, IsValidValueType(ValueURI))
	assert.False(t, IsValidValueType("list"))
}
