package handler

import (
	"context"

	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// entityJSON serializes an entity: id, class, href, the defined
// properties, and every non-empty relationship field whose codomain is a
// resource class. ONE fields emit a single {class, id}; MANY fields an
// array of them.
func (h *Handlers) entityJSON(ctx context.Context, e *types.Entity) (map[string]any, error) {
	class, err := h.classes.ClassOf(e.Class)
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"id":    e.ID,
		"class": e.Class,
		"href":  h.href(class.Path, e.ID),
	}
	for name := range class.Properties {
		if v, ok := e.Properties[name]; ok && v != nil {
			out[name] = v
		}
	}
	for name, f := range class.Relations {
		if abstract(h.classes, f.Codomain) {
			continue
		}
		putRefs(out, name, f.Cardinality, e.Relations[name])
	}
	for name, sc := range class.Shortcuts {
		if abstract(h.classes, sc.Codomain) {
			continue
		}
		related, err := h.followShortcut(ctx, sc, e.ID)
		if err != nil {
			return nil, err
		}
		refs := make([]types.Ref, len(related))
		for i, r := range related {
			refs[i] = r.Ref()
		}
		putRefs(out, name, sc.Cardinality, refs)
	}
	return out, nil
}

func putRefs(out map[string]any, name string, card types.Cardinality, refs []types.Ref) {
	switch {
	case len(refs) == 0:
	case card == types.One:
		out[name] = refs[0]
	default:
		out[name] = refs
	}
}

// abstract reports whether name is not a resource class.
func abstract(classes Classes, name string) bool {
	return !classes.IsResourceClass(name)
}

func (h *Handlers) entitiesJSON(ctx context.Context, es []*types.Entity) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(es))
	for _, e := range es {
		j, err := h.entityJSON(ctx, e)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

// relationshipJSON serializes a relationship instance with its two ends
// and its own fields.
func (h *Handlers) relationshipJSON(r *types.Relationship) map[string]any {
	out := map[string]any{
		"id":    r.ID,
		"class": r.Type,
		"href":  h.href(r.Type, r.ID),
		"A":     r.A,
		"B":     r.B,
	}
	for k, v := range r.Fields {
		if _, reserved := out[k]; !reserved && v != nil {
			out[k] = v
		}
	}
	return out
}

func (h *Handlers) relationshipsJSON(rs []*types.Relationship) []map[string]any {
	out := make([]map[string]any, 0, len(rs))
	for _, r := range rs {
		out = append(out, h.relationshipJSON(r))
	}
	return out
}

func (h *Handlers) href(path, id string) string {
	return h.baseURL + "/" + path + "/" + id
}
