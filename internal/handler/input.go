package handler

import (
	"sort"

	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// writeMode selects which fields a body may carry.
type writeMode int

const (
	modeCreate writeMode = iota
	modeUpdate
	modeReplace
)

// echoed keys are emitted on serialization and ignored on input, so a
// fetched entity can be sent back unchanged.
var echoed = map[string]bool{"id": true, "class": true, "href": true}

// parseBody splits a request body into properties and relationship ids,
// rejecting unknown fields, read-only writes, and cardinality misuse.
func parseBody(class *types.EntityClass, body map[string]any, mode writeMode) (types.ResourceInput, error) {
	in := types.ResourceInput{
		Properties: map[string]any{},
		Relations:  map[string][]string{},
	}
	for _, key := range sortedKeys(body) {
		if echoed[key] {
			continue
		}
		v := body[key]
		fs, ok := class.Field(key)
		if !ok {
			return in, types.Invalid(map[string]any{"class": class.Name, "field": key},
				"The class %s has no field '%s'.", class.Name, key)
		}
		if fs.Kind == types.FieldProperty {
			if err := fs.Property.Check(v); err != nil {
				return in, types.Invalid(map[string]any{"field": key, "value": v},
					"The '%s' property of %s is invalid: %v", key, class.Name, err)
			}
			in.Properties[key] = v
			continue
		}
		if fs.Shortcut != nil {
			return in, types.ReadOnlyField(class.Name, key)
		}
		if fs.Relation.ReadOnly && mode != modeCreate {
			return in, types.ReadOnlyField(class.Name, key)
		}
		ids, err := referenceIDs(key, v)
		if err != nil {
			return in, err
		}
		if fs.Relation.Cardinality == types.One && len(ids) > 1 {
			return in, types.Invalid(map[string]any{"field": key},
				"The '%s' field of %s holds at most one reference.", key, class.Name)
		}
		in.Relations[key] = ids
	}

	if mode != modeUpdate {
		for _, name := range sortedKeys(class.Properties) {
			p := class.Properties[name]
			if !p.Required || p.Default != nil {
				continue
			}
			if v, ok := in.Properties[name]; !ok || v == nil {
				return in, types.Invalid(map[string]any{"field": name},
					"The '%s' property of %s is required.", name, class.Name)
			}
		}
	}
	return in, nil
}

// referenceIDs accepts an id, a {class, id} object, an array of either,
// or null.
func referenceIDs(field string, v any) ([]string, error) {
	bad := types.Invalid(map[string]any{"field": field},
		"The '%s' field expects an id or an array of ids.", field)
	one := func(x any) (string, bool) {
		switch r := x.(type) {
		case string:
			return r, r != ""
		case map[string]any:
			id, ok := r["id"].(string)
			return id, ok && id != ""
		}
		return "", false
	}
	switch val := v.(type) {
	case nil:
		return []string{}, nil
	case []any:
		ids := make([]string, 0, len(val))
		for _, x := range val {
			id, ok := one(x)
			if !ok {
				return nil, bad
			}
			ids = append(ids, id)
		}
		return ids, nil
	case []string:
		return val, nil
	default:
		id, ok := one(val)
		if !ok {
			return nil, bad
		}
		return []string{id}, nil
	}
}

// relationFields returns body fields that are not ends of the
// relationship: the instance's own fields.
func relationFields(body map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range body {
		if echoed[k] || k == "A" || k == "B" {
			continue
		}
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
