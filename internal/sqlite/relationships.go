// This file implements relationship traversal and relationship instances
// addressed either by their two ends or by their own id.

package sqlite

import (
	"context"
	"database/sql"

	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// GetRelatedResources returns the entities linked to id through field, in
// position order for ordered relationships.
func (b *Backend) GetRelatedResources(ctx context.Context, field *types.RelationField, id string) ([]*types.Entity, error) {
	var out []*types.Entity
	err := b.read(ctx, "get related resources", func(q querier) error {
		links, err := linksOn(ctx, q, field.Relationship, field.Side, id)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(links))
		for _, l := range links {
			ids = append(ids, l.other(id))
		}
		byID, err := loadResources(ctx, q, ids)
		if err != nil {
			return err
		}
		for _, other := range ids {
			r, ok := byID[other]
			if !ok {
				continue
			}
			e, err := b.hydrate(ctx, q, r)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// AddRelationship links idA, on field's side, to idB.
func (b *Backend) AddRelationship(ctx context.Context, field *types.RelationField, idA, idB string, fields map[string]any) error {
	return b.write(ctx, "add relationship", func(tx *sql.Tx) error {
		return addLink(ctx, tx, field, idA, idB, fields)
	})
}

// DeleteRelationship unlinks idA and idB.
func (b *Backend) DeleteRelationship(ctx context.Context, field *types.RelationField, idA, idB string) error {
	return b.write(ctx, "delete relationship", func(tx *sql.Tx) error {
		from, to := orient(field, idA, idB)
		l, err := findLink(ctx, tx, field.Relationship, from, to)
		if err != nil {
			return err
		}
		if l == nil {
			return types.NoLink(field.Relationship.Name, idA, idB)
		}
		return removeLink(ctx, tx, field.Relationship, *l)
	})
}

// GetRelationship returns the instance linking idA and idB.
func (b *Backend) GetRelationship(ctx context.Context, field *types.RelationField, idA, idB string) (*types.Relationship, error) {
	var out *types.Relationship
	err := b.read(ctx, "get relationship", func(q querier) error {
		from, to := orient(field, idA, idB)
		l, err := findLink(ctx, q, field.Relationship, from, to)
		if err != nil {
			return err
		}
		if l == nil {
			return types.NoLink(field.Relationship.Name, idA, idB)
		}
		out, err = relationshipOf(ctx, q, field.Relationship, *l)
		return err
	})
	return out, err
}

// GetRelatedRelationships returns the instances touching id on field's
// side, in position order for ordered relationships.
func (b *Backend) GetRelatedRelationships(ctx context.Context, field *types.RelationField, id string) ([]*types.Relationship, error) {
	var out []*types.Relationship
	err := b.read(ctx, "get related relationships", func(q querier) error {
		links, err := linksOn(ctx, q, field.Relationship, field.Side, id)
		if err != nil {
			return err
		}
		for _, l := range links {
			r, err := relationshipOf(ctx, q, field.Relationship, l)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// GetAllRelationships returns every instance of rel in creation order.
func (b *Backend) GetAllRelationships(ctx context.Context, rel *types.RelationshipType) ([]*types.Relationship, error) {
	var out []*types.Relationship
	err := b.read(ctx, "get all relationships", func(q querier) error {
		rows, err := q.QueryContext(ctx, selectLink+` WHERE type = ? ORDER BY rowid`, rel.Name)
		if err != nil {
			return err
		}
		links, err := scanLinks(rows)
		if err != nil {
			return err
		}
		for _, l := range links {
			r, err := relationshipOf(ctx, q, rel, l)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// GetSpecificRelationships returns the instances of rel among ids, in the
// order of ids.
func (b *Backend) GetSpecificRelationships(ctx context.Context, rel *types.RelationshipType, ids []string) ([]*types.Relationship, error) {
	var out []*types.Relationship
	err := b.read(ctx, "get relationships", func(q querier) error {
		for _, id := range ids {
			l, err := findLinkByID(ctx, q, rel, id)
			if err != nil {
				return err
			}
			if l == nil {
				continue
			}
			r, err := relationshipOf(ctx, q, rel, *l)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// AssertRelationshipsExist fails with NotFound naming every id that is not
// an instance of rel.
func (b *Backend) AssertRelationshipsExist(ctx context.Context, rel *types.RelationshipType, ids []string) error {
	return b.read(ctx, "assert relationships", func(q querier) error {
		var missing []string
		for _, id := range ids {
			l, err := findLinkByID(ctx, q, rel, id)
			if err != nil {
				return err
			}
			if l == nil {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return types.NotFound(rel.Name, missing...)
		}
		return nil
	})
}

// UpdateRelationshipByID merges fields into the instance. A nil value
// removes a field; fixed fields cannot be changed.
func (b *Backend) UpdateRelationshipByID(ctx context.Context, rel *types.RelationshipType, id string, fields map[string]any) error {
	return b.write(ctx, "update relationship", func(tx *sql.Tx) error {
		l, err := mustLink(ctx, tx, rel, id)
		if err != nil {
			return err
		}
		current, err := decodeFields(l.fields)
		if err != nil {
			return err
		}
		plain, pos, err := splitIndex(rel, fields)
		if err != nil {
			return err
		}
		for k, v := range plain {
			if v == nil {
				delete(current, k)
			} else {
				current[k] = v
			}
		}
		return rewriteLink(ctx, tx, rel, *l, current, pos)
	})
}

// ReplaceRelationshipByID overwrites the instance's fields, keeping the
// fixed fields of rel.
func (b *Backend) ReplaceRelationshipByID(ctx context.Context, rel *types.RelationshipType, id string, fields map[string]any) error {
	return b.write(ctx, "replace relationship", func(tx *sql.Tx) error {
		l, err := mustLink(ctx, tx, rel, id)
		if err != nil {
			return err
		}
		plain, pos, err := splitIndex(rel, fields)
		if err != nil {
			return err
		}
		return rewriteLink(ctx, tx, rel, *l, plain, pos)
	})
}

// DeleteRelationshipByID removes the instance.
func (b *Backend) DeleteRelationshipByID(ctx context.Context, rel *types.RelationshipType, id string) error {
	return b.write(ctx, "delete relationship", func(tx *sql.Tx) error {
		l, err := mustLink(ctx, tx, rel, id)
		if err != nil {
			return err
		}
		return removeLink(ctx, tx, rel, *l)
	})
}

func mustLink(ctx context.Context, q querier, rel *types.RelationshipType, id string) (*linkRow, error) {
	l, err := findLinkByID(ctx, q, rel, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, types.NotFound(rel.Name, id)
	}
	return l, nil
}

func rewriteLink(ctx context.Context, tx *sql.Tx, rel *types.RelationshipType, l linkRow, fields map[string]any, pos *int) error {
	blob, err := encodeFields(withSetFields(rel, fields))
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE links SET fields = ? WHERE id = ?`, blob, l.id); err != nil {
		return err
	}
	if pos != nil {
		return moveLink(ctx, tx, rel, l, *pos)
	}
	return nil
}
