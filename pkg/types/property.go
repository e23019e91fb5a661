package types

import (
	"fmt"
	"math"
	"net/url"
)

// ValueType is the declared type of a property field.
type ValueType string

// Property value types accepted in schema documents.
const (
	ValueString  ValueType = "string"
	ValueNumber  ValueType = "number"
	ValueInteger ValueType = "integer"
	ValueBoolean ValueType = "boolean"
	ValueURI     ValueType = "uri"
)

// validValueTypes is the set of recognized property value types.
var validValueTypes = map[ValueType]bool{
	ValueString:  true,
	ValueNumber:  true,
	ValueInteger: true,
	ValueBoolean: true,
	ValueURI:     true,
}

// IsValidValueType reports whether vt is a recognized value type.
func IsValidValueType(vt ValueType) bool {
	return validValueTypes[vt]
}

// PropertySpec declares a plain attribute of an entity class.
type PropertySpec struct {
	Name     string
	Type     ValueType
	Required bool

	// Default is applied on create and on replace when the field is
	// omitted. Nil means the field stays undefined.
	Default any
}

// Check validates a JSON-decoded value against the declared type. Numbers
// arrive as float64; integer properties reject fractional values.
func (p *PropertySpec) Check(v any) error {
	if v == nil {
		return nil
	}
	switch p.Type {
	case ValueString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%w: expected string, got %s", ErrTypeMismatch, jsonKind(v))
		}
	case ValueURI:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: expected uri, got %s", ErrTypeMismatch, jsonKind(v))
		}
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" {
			return fmt.Errorf("%w: %q is not an absolute uri", ErrTypeMismatch, s)
		}
	case ValueNumber:
		if _, ok := toFloat(v); !ok {
			return fmt.Errorf("%w: expected number, got %s", ErrTypeMismatch, jsonKind(v))
		}
	case ValueInteger:
		f, ok := toFloat(v)
		if !ok || f != math.Trunc(f) {
			return fmt.Errorf("%w: expected integer, got %s", ErrTypeMismatch, jsonKind(v))
		}
	case ValueBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%w: expected boolean, got %s", ErrTypeMismatch, jsonKind(v))
		}
	default:
		return ErrInvalidValueType
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// jsonKind names the JSON kind of a decoded value for error messages.
func jsonKind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, int32, uint64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	}
	return fmt.Sprintf("%T", v)
}
