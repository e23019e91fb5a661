// This file implements the resource operations of types.Storage.

package sqlite

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

type resourceRow struct {
	id      string
	class   string
	fields  []byte
	created string
	updated string
}

const selectResource = `SELECT id, class, fields, created_at, updated_at FROM resources`

func scanResources(rows *sql.Rows) ([]resourceRow, error) {
	defer rows.Close()
	var out []resourceRow
	for rows.Next() {
		var r resourceRow
		if err := rows.Scan(&r.id, &r.class, &r.fields, &r.created, &r.updated); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}

// loadResources returns the rows for ids, keyed by id.
func loadResources(ctx context.Context, q querier, ids []string) (map[string]resourceRow, error) {
	out := make(map[string]resourceRow, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.QueryContext(ctx, selectResource+` WHERE id IN (`+placeholders(len(ids))+`)`, stringArgs(ids)...)
	if err != nil {
		return nil, err
	}
	list, err := scanResources(rows)
	if err != nil {
		return nil, err
	}
	for _, r := range list {
		out[r.id] = r
	}
	return out, nil
}

// loadOwned returns the row for id when it exists as an instance of class.
func loadOwned(ctx context.Context, q querier, class *types.EntityClass, id string) (resourceRow, error) {
	rows, err := loadResources(ctx, q, []string{id})
	if err != nil {
		return resourceRow{}, err
	}
	r, ok := rows[id]
	if !ok || !class.Accepts(r.class) {
		return resourceRow{}, types.NotFound(class.Name, id)
	}
	return r, nil
}

// hydrate builds an Entity from its row and the links touching it.
func (b *Backend) hydrate(ctx context.Context, q querier, r resourceRow) (*types.Entity, error) {
	class, err := b.catalog.ClassOf(r.class)
	if err != nil {
		return nil, err
	}
	props, err := decodeFields(r.fields)
	if err != nil {
		return nil, err
	}
	e := &types.Entity{
		ID:         r.id,
		Class:      r.class,
		Properties: props,
		Relations:  map[string][]types.Ref{},
		CreatedAt:  parseTime(r.created),
		UpdatedAt:  parseTime(r.updated),
	}

	bySide := map[string][2]*types.RelationField{}
	for _, f := range class.Relations {
		ends := bySide[f.Relationship.Name]
		if f.Relationship.Symmetric {
			ends[0], ends[1] = f, f
		} else {
			ends[f.Side] = f
		}
		bySide[f.Relationship.Name] = ends
	}

	rows, err := q.QueryContext(ctx, `SELECT l.type, l.from_id, l.to_id, l.position, a.class, c.class
FROM links l
JOIN resources a ON a.id = l.from_id
JOIN resources c ON c.id = l.to_id
WHERE l.from_id = ? OR l.to_id = ?
ORDER BY l.position IS NULL, l.position, l.rowid`, r.id, r.id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			typ, from, to, fromClass, toClass string
			position                          sql.NullInt64
		)
		if err := rows.Scan(&typ, &from, &to, &position, &fromClass, &toClass); err != nil {
			return nil, err
		}
		ends, ok := bySide[typ]
		if !ok {
			continue
		}
		refs := [2]types.Ref{{Class: toClass, ID: to}, {Class: fromClass, ID: from}}
		for side, holder := range [2]string{from, to} {
			f := ends[side]
			if f == nil || holder != r.id {
				continue
			}
			e.Relations[f.Name] = append(e.Relations[f.Name], refs[side])
			if f.IndexFieldName != "" && position.Valid {
				e.Properties[f.IndexFieldName] = position.Int64
			}
			if f.Relationship.Symmetric {
				break
			}
		}
	}
	return e, rows.Err()
}

func (b *Backend) hydrateAll(ctx context.Context, q querier, rows []resourceRow) ([]*types.Entity, error) {
	out := make([]*types.Entity, 0, len(rows))
	for _, r := range rows {
		e, err := b.hydrate(ctx, q, r)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// GetAllResources returns every instance of class in creation order.
func (b *Backend) GetAllResources(ctx context.Context, class *types.EntityClass) ([]*types.Entity, error) {
	var out []*types.Entity
	err := b.read(ctx, "get all resources", func(q querier) error {
		if len(class.Concrete) == 0 {
			return nil
		}
		rows, err := q.QueryContext(ctx,
			selectResource+` WHERE class IN (`+placeholders(len(class.Concrete))+`) ORDER BY rowid`,
			stringArgs(class.Concrete)...)
		if err != nil {
			return err
		}
		list, err := scanResources(rows)
		if err != nil {
			return err
		}
		out, err = b.hydrateAll(ctx, q, list)
		return err
	})
	return out, err
}

// GetSpecificResources returns the instances of class among ids, in the
// order of ids.
func (b *Backend) GetSpecificResources(ctx context.Context, class *types.EntityClass, ids []string) ([]*types.Entity, error) {
	var out []*types.Entity
	err := b.read(ctx, "get resources", func(q querier) error {
		byID, err := loadResources(ctx, q, ids)
		if err != nil {
			return err
		}
		var list []resourceRow
		for _, id := range ids {
			if r, ok := byID[id]; ok && class.Accepts(r.class) {
				list = append(list, r)
			}
		}
		out, err = b.hydrateAll(ctx, q, list)
		return err
	})
	return out, err
}

// AssertResourcesExist fails with NotFound naming every id that is not an
// instance of class.
func (b *Backend) AssertResourcesExist(ctx context.Context, class *types.EntityClass, ids []string) error {
	return b.read(ctx, "assert resources", func(q querier) error {
		byID, err := loadResources(ctx, q, ids)
		if err != nil {
			return err
		}
		var missing []string
		for _, id := range ids {
			if r, ok := byID[id]; !ok || !class.Accepts(r.class) {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return types.NotFound(class.Name, missing...)
		}
		return nil
	})
}

// CreateResource inserts an entity of a concrete class and links it as
// input.Relations says, in one transaction.
func (b *Backend) CreateResource(ctx context.Context, class *types.EntityClass, input types.ResourceInput) (string, error) {
	if class.Abstract {
		return "", types.Invalid(map[string]any{"class": class.Name},
			"Cannot create an instance of the abstract class %s.", class.Name)
	}
	id := generateUUID()
	err := b.write(ctx, "create resource", func(tx *sql.Tx) error {
		plain, positions, err := splitPositions(class, input.Properties)
		if err != nil {
			return err
		}
		props := withDefaults(class, plain)
		blob, err := encodeFields(props)
		if err != nil {
			return err
		}
		ts := now()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO resources (id, class, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			id, class.Name, blob, ts, ts,
		); err != nil {
			return err
		}
		for _, name := range sortedKeys(input.Relations) {
			f, err := relationField(class, name)
			if err != nil {
				return err
			}
			if err := replaceLinks(ctx, tx, f, id, input.Relations[name]); err != nil {
				return err
			}
		}
		return applyPositions(ctx, tx, id, positions)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateResource merges properties (a nil value removes the property) and
// replaces the link sets of the relationship fields present in input.
func (b *Backend) UpdateResource(ctx context.Context, class *types.EntityClass, id string, input types.ResourceInput) error {
	return b.write(ctx, "update resource", func(tx *sql.Tx) error {
		row, err := loadOwned(ctx, tx, class, id)
		if err != nil {
			return err
		}
		props, err := decodeFields(row.fields)
		if err != nil {
			return err
		}
		plain, positions, err := splitPositions(class, input.Properties)
		if err != nil {
			return err
		}
		for k, v := range plain {
			if v == nil {
				delete(props, k)
			} else {
				props[k] = v
			}
		}
		return b.rewrite(ctx, tx, class, id, props, input.Relations, positions, false)
	})
}

// ReplaceResource overwrites every mutable field. Omitted properties fall
// back to their defaults and omitted writable relationship fields are
// cleared.
func (b *Backend) ReplaceResource(ctx context.Context, class *types.EntityClass, id string, input types.ResourceInput) error {
	return b.write(ctx, "replace resource", func(tx *sql.Tx) error {
		if _, err := loadOwned(ctx, tx, class, id); err != nil {
			return err
		}
		plain, positions, err := splitPositions(class, input.Properties)
		if err != nil {
			return err
		}
		return b.rewrite(ctx, tx, class, id, withDefaults(class, plain), input.Relations, positions, true)
	})
}

func (b *Backend) rewrite(ctx context.Context, tx *sql.Tx, class *types.EntityClass, id string,
	props map[string]any, relations map[string][]string, positions map[*types.RelationField]int, clear bool) error {
	blob, err := encodeFields(props)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE resources SET fields = ?, updated_at = ? WHERE id = ?`, blob, now(), id); err != nil {
		return err
	}
	for _, name := range sortedKeys(relations) {
		f, err := relationField(class, name)
		if err != nil {
			return err
		}
		if err := replaceLinks(ctx, tx, f, id, relations[name]); err != nil {
			return err
		}
	}
	if clear {
		for _, name := range sortedKeys(class.Relations) {
			f := class.Relations[name]
			if _, given := relations[name]; given || f.ReadOnly {
				continue
			}
			if err := replaceLinks(ctx, tx, f, id, nil); err != nil {
				return err
			}
		}
	}
	return applyPositions(ctx, tx, id, positions)
}

// DeleteResource removes the entity and every link touching it, closing
// the gaps left in ordered groups.
func (b *Backend) DeleteResource(ctx context.Context, class *types.EntityClass, id string) error {
	return b.write(ctx, "delete resource", func(tx *sql.Tx) error {
		if _, err := loadOwned(ctx, tx, class, id); err != nil {
			return err
		}
		return deleteResourceTx(ctx, tx, b.catalog, id)
	})
}

func deleteResourceTx(ctx context.Context, tx *sql.Tx, catalog Catalog, id string) error {
	rows, err := tx.QueryContext(ctx, selectLink+` WHERE from_id = ? OR to_id = ?`, id, id)
	if err != nil {
		return err
	}
	links, err := scanLinks(rows)
	if err != nil {
		return err
	}
	for _, l := range links {
		rt, err := catalog.Relationship(l.typ)
		if err != nil {
			// Rows of a type no longer declared are dropped without
			// renumbering.
			if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, l.id); err != nil {
				return err
			}
			continue
		}
		if err := removeLink(ctx, tx, rt, l); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id)
	return err
}

// EnsureUniqueIDConstraint creates the unique id index for class if it is
// missing.
func (b *Backend) EnsureUniqueIDConstraint(ctx context.Context, class *types.EntityClass) error {
	ddl, err := uniqueIDIndex(class.Name)
	if err != nil {
		return types.Configf("class "+class.Name, "%v", err)
	}
	return b.read(ctx, "ensure unique id", func(q querier) error {
		_, err := q.ExecContext(ctx, ddl)
		return err
	})
}

func relationField(class *types.EntityClass, name string) (*types.RelationField, error) {
	f, ok := class.Relations[name]
	if !ok {
		return nil, types.Invalid(map[string]any{"field": name},
			"The class %s has no relationship field '%s'.", class.Name, name)
	}
	return f, nil
}

// splitPositions separates index-field values from plain properties.
func splitPositions(class *types.EntityClass, props map[string]any) (map[string]any, map[*types.RelationField]int, error) {
	plain := make(map[string]any, len(props))
	positions := map[*types.RelationField]int{}
	indexed := map[string]*types.RelationField{}
	for _, f := range class.Relations {
		if f.IndexFieldName != "" {
			indexed[f.IndexFieldName] = f
		}
	}
	for k, v := range props {
		f, ok := indexed[k]
		if !ok {
			plain[k] = v
			continue
		}
		if v == nil {
			continue
		}
		p, err := toPosition(v)
		if err != nil {
			return nil, nil, types.Invalid(map[string]any{"field": k},
				"The '%s' field must be a positive integer.", k)
		}
		positions[f] = p
	}
	return plain, positions, nil
}

// applyPositions moves the entity's ordered links to the requested
// positions. An entity without such a link ignores the request.
func applyPositions(ctx context.Context, tx *sql.Tx, id string, positions map[*types.RelationField]int) error {
	for f, pos := range positions {
		links, err := linksOn(ctx, tx, f.Relationship, f.Side, id)
		if err != nil {
			return err
		}
		for _, l := range links {
			if err := moveLink(ctx, tx, f.Relationship, l, pos); err != nil {
				return err
			}
		}
	}
	return nil
}

func withDefaults(class *types.EntityClass, props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for name, p := range class.Properties {
		if p.Default != nil {
			out[name] = p.Default
		}
	}
	for k, v := range props {
		if v != nil {
			out[k] = v
		}
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
