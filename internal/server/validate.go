package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// maxBodyBytes bounds a request body.
const maxBodyBytes = 1 << 20

// ValidationError is a request that does not conform to the API. Its text
// is the multi-line "400 Error: ..." form, one `name: "value"` line per
// detail.
type ValidationError struct {
	Message string
	Details [][2]string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d Error: %s", http.StatusBadRequest, e.Message)
	for _, d := range e.Details {
		fmt.Fprintf(&b, "\n%s: \"%s\"", d[0], d[1])
	}
	return b.String()
}

func invalid(message string, details ...[2]string) *ValidationError {
	return &ValidationError{Message: message, Details: details}
}

// parseIDs validates a path id parameter. With many set, raw is a
// comma-separated list.
func parseIDs(param, raw string, many bool) ([]string, error) {
	parts := []string{raw}
	if many {
		parts = strings.Split(raw, ",")
	}
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		u, err := uuid.Parse(strings.TrimSpace(p))
		if err != nil {
			return nil, invalid(fmt.Sprintf("Invalid %q path parameter", param),
				[2]string{param, raw})
		}
		ids = append(ids, u.String())
	}
	return ids, nil
}

// decodeBody reads a JSON object. An empty body is an empty object.
func decodeBody(r *http.Request) (map[string]any, error) {
	body := map[string]any{}
	if r.Body == nil {
		return body, nil
	}
	var v any
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&v)
	switch {
	case errors.Is(err, io.EOF):
		return body, nil
	case err != nil:
		return nil, invalid("Request body is not valid JSON", [2]string{"reason", err.Error()})
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, invalid("Request body must be a JSON object")
	}
	return obj, nil
}

// echoed keys are accepted in any body and ignored by the handlers.
var echoed = map[string]bool{"id": true, "class": true, "href": true}

// checkBody validates keys and value types against the class.
func checkBody(class *types.EntityClass, body map[string]any) error {
	for _, key := range sortedKeys(body) {
		if echoed[key] {
			continue
		}
		v := body[key]
		fs, ok := class.Field(key)
		if !ok {
			return invalid(fmt.Sprintf("Unknown field %q for class %s", key, class.Name),
				[2]string{"field", key})
		}
		if fs.Kind == types.FieldProperty {
			if err := fs.Property.Check(v); err != nil {
				return invalid(fmt.Sprintf("Invalid value for field %q", key),
					[2]string{"field", key}, [2]string{"reason", err.Error()})
			}
			continue
		}
		if !referenceShaped(v) {
			return invalid(fmt.Sprintf("Invalid reference for field %q", key),
				[2]string{"field", key})
		}
	}
	return nil
}

// referenceShaped accepts what a relationship field may carry: null, an
// id, a {class, id} object, or an array of ids and objects.
func referenceShaped(v any) bool {
	switch val := v.(type) {
	case nil, string, map[string]any:
		return true
	case []any:
		for _, x := range val {
			switch x.(type) {
			case string, map[string]any:
			default:
				return false
			}
		}
		return true
	}
	return false
}
