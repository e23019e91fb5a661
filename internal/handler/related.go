package handler

import (
	"context"

	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// GetRelated returns the entities reachable from IDA through the target
// field or shortcut.
func (h *Handlers) GetRelated(ctx context.Context, t Target, req Request) (Response, error) {
	if err := h.assertExist(ctx, existence{t.Class, []string{req.IDA}}); err != nil {
		return Response{}, err
	}
	var (
		es  []*types.Entity
		err error
	)
	if t.Shortcut != nil {
		es, err = h.followShortcut(ctx, t.Shortcut, req.IDA)
	} else {
		es, err = h.storage.GetRelatedResources(ctx, t.RelA, req.IDA)
	}
	if err != nil {
		return Response{}, err
	}
	body, err := h.entitiesJSON(ctx, es)
	if err != nil {
		return Response{}, err
	}
	return ok(body)
}

// followShortcut walks each hop of sc from id, keeping the first
// occurrence of every entity reached.
func (h *Handlers) followShortcut(ctx context.Context, sc *types.Shortcut, id string) ([]*types.Entity, error) {
	frontier := []string{id}
	var reached []*types.Entity
	for _, hop := range sc.Hops {
		seen := map[string]bool{}
		reached = reached[:0:0]
		for _, from := range frontier {
			es, err := h.storage.GetRelatedResources(ctx, hop, from)
			if err != nil {
				return nil, err
			}
			for _, e := range es {
				if !seen[e.ID] {
					seen[e.ID] = true
					reached = append(reached, e)
				}
			}
		}
		frontier = frontier[:0:0]
		for _, e := range reached {
			frontier = append(frontier, e.ID)
		}
	}
	return reached, nil
}

// LinkResources adds the link between IDA and IDB through the target
// field. Body fields become fields of the relationship instance.
func (h *Handlers) LinkResources(ctx context.Context, t Target, req Request) (Response, error) {
	if err := h.checkLinkable(ctx, t, req); err != nil {
		return Response{}, err
	}
	if err := h.storage.AddRelationship(ctx, t.RelA, req.IDA, req.IDB, relationFields(req.Body)); err != nil {
		return Response{}, err
	}
	h.log.Debugw("linked", "relationship", t.RelA.Relationship.Name, "a", req.IDA, "b", req.IDB)
	return noContent()
}

// UnlinkResources removes the link between IDA and IDB.
func (h *Handlers) UnlinkResources(ctx context.Context, t Target, req Request) (Response, error) {
	if err := h.checkLinkable(ctx, t, req); err != nil {
		return Response{}, err
	}
	if err := h.storage.DeleteRelationship(ctx, t.RelA, req.IDA, req.IDB); err != nil {
		return Response{}, err
	}
	h.log.Debugw("unlinked", "relationship", t.RelA.Relationship.Name, "a", req.IDA, "b", req.IDB)
	return noContent()
}

// checkLinkable rejects read-only and self links, then asserts both ends
// exist, reporting every missing id at once.
func (h *Handlers) checkLinkable(ctx context.Context, t Target, req Request) error {
	if t.RelA.ReadOnly {
		return types.ReadOnlyField(t.Class.Name, t.RelA.Name)
	}
	if err := checkAntiReflexive(t.RelA.Relationship, req.IDA, req.IDB); err != nil {
		return err
	}
	return h.assertEnds(ctx, t, req)
}

func (h *Handlers) assertEnds(ctx context.Context, t Target, req Request) error {
	codomain, err := h.codomainOf(t.RelA)
	if err != nil {
		return err
	}
	return h.assertExist(ctx,
		existence{t.Class, []string{req.IDA}},
		existence{codomain, []string{req.IDB}},
	)
}
