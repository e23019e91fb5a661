package handler

import (
	"context"

	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// ListRelationships returns every instance of the target relationship.
func (h *Handlers) ListRelationships(ctx context.Context, t Target, _ Request) (Response, error) {
	rs, err := h.storage.GetAllRelationships(ctx, t.Rel)
	if err != nil {
		return Response{}, err
	}
	return ok(h.relationshipsJSON(rs))
}

// GetRelationships returns the instances with the requested ids.
func (h *Handlers) GetRelationships(ctx context.Context, t Target, req Request) (Response, error) {
	if err := h.storage.AssertRelationshipsExist(ctx, t.Rel, req.IDs); err != nil {
		return Response{}, err
	}
	return h.fetchRelationships(ctx, t.Rel, req.IDs)
}

// UpdateRelationships merges the body into each requested instance.
func (h *Handlers) UpdateRelationships(ctx context.Context, t Target, req Request) (Response, error) {
	if err := h.storage.AssertRelationshipsExist(ctx, t.Rel, req.IDs); err != nil {
		return Response{}, err
	}
	fields := relationFields(req.Body)
	for _, id := range req.IDs {
		if err := h.storage.UpdateRelationshipByID(ctx, t.Rel, id, fields); err != nil {
			return Response{}, err
		}
	}
	return h.fetchRelationships(ctx, t.Rel, req.IDs)
}

// ReplaceRelationships overwrites the fields of each requested instance.
func (h *Handlers) ReplaceRelationships(ctx context.Context, t Target, req Request) (Response, error) {
	if err := h.storage.AssertRelationshipsExist(ctx, t.Rel, req.IDs); err != nil {
		return Response{}, err
	}
	fields := relationFields(req.Body)
	for _, id := range req.IDs {
		if err := h.storage.ReplaceRelationshipByID(ctx, t.Rel, id, fields); err != nil {
			return Response{}, err
		}
	}
	return h.fetchRelationships(ctx, t.Rel, req.IDs)
}

// DeleteRelationships removes each requested instance.
func (h *Handlers) DeleteRelationships(ctx context.Context, t Target, req Request) (Response, error) {
	if t.Rel.Ends[0].ReadOnly || t.Rel.Ends[1].ReadOnly {
		return Response{}, types.ReadOnlyField(t.Rel.Name, t.Rel.Ends[0].Name)
	}
	if err := h.storage.AssertRelationshipsExist(ctx, t.Rel, req.IDs); err != nil {
		return Response{}, err
	}
	for _, id := range req.IDs {
		if err := h.storage.DeleteRelationshipByID(ctx, t.Rel, id); err != nil {
			return Response{}, err
		}
	}
	return noContent()
}

func (h *Handlers) fetchRelationships(ctx context.Context, rel *types.RelationshipType, ids []string) (Response, error) {
	rs, err := h.storage.GetSpecificRelationships(ctx, rel, ids)
	if err != nil {
		return Response{}, err
	}
	return ok(h.relationshipsJSON(rs))
}

// GetRelatedRelationships returns the instances of the target
// relationship that hold IDA on the target end.
func (h *Handlers) GetRelatedRelationships(ctx context.Context, t Target, req Request) (Response, error) {
	if err := h.assertExist(ctx, existence{t.Class, []string{req.IDA}}); err != nil {
		return Response{}, err
	}
	rs, err := h.storage.GetRelatedRelationships(ctx, t.RelA, req.IDA)
	if err != nil {
		return Response{}, err
	}
	return ok(h.relationshipsJSON(rs))
}

// GetRelationshipByResources returns the instance linking IDA and IDB.
func (h *Handlers) GetRelationshipByResources(ctx context.Context, t Target, req Request) (Response, error) {
	if err := h.assertEnds(ctx, t, req); err != nil {
		return Response{}, err
	}
	return h.relationshipByEnds(ctx, t, req)
}

// PutRelationshipByResources creates the link between IDA and IDB, or
// updates the fields of an existing one, and returns the instance.
func (h *Handlers) PutRelationshipByResources(ctx context.Context, t Target, req Request) (Response, error) {
	if err := h.checkLinkable(ctx, t, req); err != nil {
		return Response{}, err
	}
	if err := h.storage.AddRelationship(ctx, t.RelA, req.IDA, req.IDB, relationFields(req.Body)); err != nil {
		return Response{}, err
	}
	return h.relationshipByEnds(ctx, t, req)
}

// UpdateRelationshipByResources merges the body into the existing
// instance linking IDA and IDB.
func (h *Handlers) UpdateRelationshipByResources(ctx context.Context, t Target, req Request) (Response, error) {
	if err := h.assertEnds(ctx, t, req); err != nil {
		return Response{}, err
	}
	r, err := h.storage.GetRelationship(ctx, t.RelA, req.IDA, req.IDB)
	if err != nil {
		return Response{}, err
	}
	if err := h.storage.UpdateRelationshipByID(ctx, t.Rel, r.ID, relationFields(req.Body)); err != nil {
		return Response{}, err
	}
	return h.relationshipByEnds(ctx, t, req)
}

// DeleteRelationshipByResources removes the instance linking IDA and IDB.
func (h *Handlers) DeleteRelationshipByResources(ctx context.Context, t Target, req Request) (Response, error) {
	return h.UnlinkResources(ctx, t, req)
}

func (h *Handlers) relationshipByEnds(ctx context.Context, t Target, req Request) (Response, error) {
	r, err := h.storage.GetRelationship(ctx, t.RelA, req.IDA, req.IDB)
	if err != nil {
		return Response{}, err
	}
	return ok(h.relationshipJSON(r))
}
