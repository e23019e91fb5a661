package handler

import (
	"context"

	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// ListResources returns every entity of the target class.
func (h *Handlers) ListResources(ctx context.Context, t Target, _ Request) (Response, error) {
	es, err := h.storage.GetAllResources(ctx, t.Class)
	if err != nil {
		return Response{}, err
	}
	body, err := h.entitiesJSON(ctx, es)
	if err != nil {
		return Response{}, err
	}
	return ok(body)
}

// CreateResource creates one entity. Relationship ids in the body are
// checked against their codomain before anything is written.
func (h *Handlers) CreateResource(ctx context.Context, t Target, req Request) (Response, error) {
	in, err := parseBody(t.Class, req.Body, modeCreate)
	if err != nil {
		return Response{}, err
	}
	if err := h.assertReferences(ctx, t.Class, "", in); err != nil {
		return Response{}, err
	}
	id, err := h.storage.CreateResource(ctx, t.Class, in)
	if err != nil {
		return Response{}, err
	}
	h.log.Debugw("resource created", "class", t.Class.Name, "id", id)

	es, err := h.storage.GetSpecificResources(ctx, t.Class, []string{id})
	if err != nil {
		return Response{}, err
	}
	if len(es) == 0 {
		return Response{}, types.NotFound(t.Class.Name, id)
	}
	body, err := h.entityJSON(ctx, es[0])
	if err != nil {
		return Response{}, err
	}
	return created(body)
}

// GetResources returns the entities with the requested ids.
func (h *Handlers) GetResources(ctx context.Context, t Target, req Request) (Response, error) {
	if err := h.assertExist(ctx, existence{t.Class, req.IDs}); err != nil {
		return Response{}, err
	}
	return h.fetch(ctx, t.Class, req.IDs)
}

// UpdateResources merges the body into each requested entity.
func (h *Handlers) UpdateResources(ctx context.Context, t Target, req Request) (Response, error) {
	return h.write(ctx, t, req, modeUpdate, h.storage.UpdateResource)
}

// ReplaceResources overwrites each requested entity with the body.
func (h *Handlers) ReplaceResources(ctx context.Context, t Target, req Request) (Response, error) {
	return h.write(ctx, t, req, modeReplace, h.storage.ReplaceResource)
}

type writeFunc func(ctx context.Context, class *types.EntityClass, id string, in types.ResourceInput) error

func (h *Handlers) write(ctx context.Context, t Target, req Request, mode writeMode, apply writeFunc) (Response, error) {
	if err := h.assertExist(ctx, existence{t.Class, req.IDs}); err != nil {
		return Response{}, err
	}
	in, err := parseBody(t.Class, req.Body, mode)
	if err != nil {
		return Response{}, err
	}
	for _, id := range req.IDs {
		if err := h.assertReferences(ctx, t.Class, id, in); err != nil {
			return Response{}, err
		}
	}
	for _, id := range req.IDs {
		if err := apply(ctx, t.Class, id, in); err != nil {
			return Response{}, err
		}
	}
	h.log.Debugw("resources written", "class", t.Class.Name, "ids", req.IDs)
	return h.fetch(ctx, t.Class, req.IDs)
}

// DeleteResources deletes each requested entity and its links.
func (h *Handlers) DeleteResources(ctx context.Context, t Target, req Request) (Response, error) {
	if err := h.assertExist(ctx, existence{t.Class, req.IDs}); err != nil {
		return Response{}, err
	}
	for _, id := range req.IDs {
		if err := h.storage.DeleteResource(ctx, t.Class, id); err != nil {
			return Response{}, err
		}
	}
	h.log.Debugw("resources deleted", "class", t.Class.Name, "ids", req.IDs)
	return noContent()
}

func (h *Handlers) fetch(ctx context.Context, class *types.EntityClass, ids []string) (Response, error) {
	es, err := h.storage.GetSpecificResources(ctx, class, ids)
	if err != nil {
		return Response{}, err
	}
	body, err := h.entitiesJSON(ctx, es)
	if err != nil {
		return Response{}, err
	}
	return ok(body)
}

// assertReferences checks that every id in in.Relations exists in its
// field's codomain and that no anti-reflexive field points back at self.
func (h *Handlers) assertReferences(ctx context.Context, class *types.EntityClass, self string, in types.ResourceInput) error {
	var checks []existence
	for _, name := range sortedKeys(in.Relations) {
		f := class.Relations[name]
		ids := in.Relations[name]
		for _, id := range ids {
			if err := checkAntiReflexive(f.Relationship, self, id); err != nil {
				return err
			}
		}
		codomain, err := h.codomainOf(f)
		if err != nil {
			return err
		}
		checks = append(checks, existence{codomain, ids})
	}
	return h.assertExist(ctx, checks...)
}
