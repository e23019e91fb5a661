// This file implements link rows: orientation, ONE-cardinality
// displacement, and the contiguous 1-based positions of ordered
// relationships.

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// linkRow is one row of the links table.
type linkRow struct {
	id       string
	typ      string
	from     string
	to       string
	position sql.NullInt64
	fields   []byte
	created  string
}

const selectLink = `SELECT id, type, from_id, to_id, position, fields, created_at FROM links`

// orderByPosition sorts ordered links first by position, then everything
// else in insertion order.
const orderByPosition = ` ORDER BY position IS NULL, position, rowid`

func scanLinks(rows *sql.Rows) ([]linkRow, error) {
	defer rows.Close()
	var out []linkRow
	for rows.Next() {
		var l linkRow
		if err := rows.Scan(&l.id, &l.typ, &l.from, &l.to, &l.position, &l.fields, &l.created); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// other returns the id at the far end of the row as seen from id.
func (l linkRow) other(id string) string {
	if l.from == id {
		return l.to
	}
	return l.from
}

// sideID returns the id stored in the column of side.
func (l linkRow) sideID(side int) string {
	if side == 0 {
		return l.from
	}
	return l.to
}

// orient maps an (idA on f's side, idB on the reverse side) pair onto the
// from and to columns.
func orient(f *types.RelationField, idA, idB string) (from, to string) {
	if f.Relationship.Symmetric {
		if idA > idB {
			return idB, idA
		}
		return idA, idB
	}
	if f.Side == 0 {
		return idA, idB
	}
	return idB, idA
}

// linksOn returns the links of rt that hold id on side, in position
// order. For symmetric relationships either column matches.
func linksOn(ctx context.Context, q querier, rt *types.RelationshipType, side int, id string) ([]linkRow, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if rt.Symmetric {
		rows, err = q.QueryContext(ctx, selectLink+` WHERE type = ? AND (from_id = ? OR to_id = ?)`+orderByPosition,
			rt.Name, id, id)
	} else {
		rows, err = q.QueryContext(ctx, selectLink+` WHERE type = ? AND `+linkColumns[side]+` = ?`+orderByPosition,
			rt.Name, id)
	}
	if err != nil {
		return nil, err
	}
	return scanLinks(rows)
}

func findLink(ctx context.Context, q querier, rt *types.RelationshipType, from, to string) (*linkRow, error) {
	rows, err := q.QueryContext(ctx, selectLink+` WHERE type = ? AND from_id = ? AND to_id = ?`, rt.Name, from, to)
	if err != nil {
		return nil, err
	}
	links, err := scanLinks(rows)
	if err != nil || len(links) == 0 {
		return nil, err
	}
	return &links[0], nil
}

func findLinkByID(ctx context.Context, q querier, rt *types.RelationshipType, id string) (*linkRow, error) {
	rows, err := q.QueryContext(ctx, selectLink+` WHERE type = ? AND id = ?`, rt.Name, id)
	if err != nil {
		return nil, err
	}
	links, err := scanLinks(rows)
	if err != nil || len(links) == 0 {
		return nil, err
	}
	return &links[0], nil
}

// groupOf returns the id that groups the row's ordered siblings: the id on
// the side opposite the indexed end. ok is false for unordered types.
func groupOf(rt *types.RelationshipType, l linkRow) (group string, side int, ok bool) {
	ie := rt.IndexedEnd()
	if ie == nil {
		return "", 0, false
	}
	side = 1 - ie.Side
	return l.sideID(side), side, true
}

// splitIndex removes rt's index field from fields and returns the
// requested position, if any.
func splitIndex(rt *types.RelationshipType, fields map[string]any) (map[string]any, *int, error) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	ie := rt.IndexedEnd()
	if ie == nil {
		return out, nil, nil
	}
	v, ok := out[ie.IndexFieldName]
	if !ok {
		return out, nil, nil
	}
	delete(out, ie.IndexFieldName)
	if v == nil {
		return out, nil, nil
	}
	p, err := toPosition(v)
	if err != nil {
		return nil, nil, types.Invalid(map[string]any{"field": ie.IndexFieldName},
			"The '%s' field must be a positive integer.", ie.IndexFieldName)
	}
	return out, &p, nil
}

func toPosition(v any) (int, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, fmt.Errorf("position %v is not a number", v)
	}
	if f != math.Trunc(f) || f < 1 {
		return 0, fmt.Errorf("position %v is not a positive integer", v)
	}
	return int(f), nil
}

// withSetFields merges the relationship's fixed fields over fields.
func withSetFields(rt *types.RelationshipType, fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if v != nil {
			out[k] = v
		}
	}
	for k, v := range rt.SetFields() {
		out[k] = v
	}
	return out
}

// addLink links idA (on f's side) to idB. An existing link keeps its id
// and has its fields merged. ONE ends that already hold another link have
// it removed first.
func addLink(ctx context.Context, tx *sql.Tx, f *types.RelationField, idA, idB string, fields map[string]any) error {
	rt := f.Relationship
	from, to := orient(f, idA, idB)

	plain, pos, err := splitIndex(rt, fields)
	if err != nil {
		return err
	}

	for side, end := range rt.Ends {
		if end.Cardinality != types.One {
			continue
		}
		holder := from
		if side == 1 {
			holder = to
		}
		if err := displace(ctx, tx, rt, side, holder, from, to); err != nil {
			return err
		}
	}

	existing, err := findLink(ctx, tx, rt, from, to)
	if err != nil {
		return err
	}
	if existing != nil {
		current, err := decodeFields(existing.fields)
		if err != nil {
			return err
		}
		for k, v := range plain {
			current[k] = v
		}
		blob, err := encodeFields(withSetFields(rt, current))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE links SET fields = ? WHERE id = ?`, blob, existing.id); err != nil {
			return err
		}
		if pos != nil {
			return moveLink(ctx, tx, rt, *existing, *pos)
		}
		return nil
	}

	blob, err := encodeFields(withSetFields(rt, plain))
	if err != nil {
		return err
	}
	row := linkRow{id: generateUUID(), typ: rt.Name, from: from, to: to, created: now()}
	if group, side, ok := groupOf(rt, row); ok {
		var n int64
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM links WHERE type = ? AND `+linkColumns[side]+` = ?`,
			rt.Name, group).Scan(&n)
		if err != nil {
			return err
		}
		row.position = sql.NullInt64{Int64: n + 1, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO links (id, type, from_id, to_id, position, fields, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.id, row.typ, row.from, row.to, row.position, blob, row.created,
	); err != nil {
		return err
	}
	if pos != nil {
		return moveLink(ctx, tx, rt, row, *pos)
	}
	return nil
}

// displace removes every link of rt holding holder on side except the
// (from, to) pair itself.
func displace(ctx context.Context, tx *sql.Tx, rt *types.RelationshipType, side int, holder, from, to string) error {
	links, err := linksOn(ctx, tx, rt, side, holder)
	if err != nil {
		return err
	}
	for _, l := range links {
		if l.from == from && l.to == to {
			continue
		}
		if err := removeLink(ctx, tx, rt, l); err != nil {
			return err
		}
	}
	return nil
}

// removeLink deletes a row and closes the gap it leaves in its group.
func removeLink(ctx context.Context, tx *sql.Tx, rt *types.RelationshipType, l linkRow) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, l.id); err != nil {
		return err
	}
	if group, side, ok := groupOf(rt, l); ok {
		return renumber(ctx, tx, rt, side, group, "", 0)
	}
	return nil
}

// moveLink places l at pos within its group, shifting siblings. Positions
// past the end are clamped.
func moveLink(ctx context.Context, tx *sql.Tx, rt *types.RelationshipType, l linkRow, pos int) error {
	group, side, ok := groupOf(rt, l)
	if !ok {
		return nil
	}
	return renumber(ctx, tx, rt, side, group, l.id, pos)
}

// renumber rewrites the positions of a group as 1..n. When moving is set,
// that link is placed at pos and the others keep their relative order.
func renumber(ctx context.Context, tx *sql.Tx, rt *types.RelationshipType, side int, group, moving string, pos int) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM links WHERE type = ? AND `+linkColumns[side]+` = ?`+orderByPosition,
		rt.Name, group)
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if id != moving {
			ids = append(ids, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if moving != "" {
		if pos > len(ids)+1 {
			pos = len(ids) + 1
		}
		ids = append(ids[:pos-1], append([]string{moving}, ids[pos-1:]...)...)
	}
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE links SET position = ? WHERE id = ?`, i+1, id); err != nil {
			return err
		}
	}
	return nil
}

// replaceLinks makes ids the complete set linked from id through f, in
// the given order.
func replaceLinks(ctx context.Context, tx *sql.Tx, f *types.RelationField, id string, ids []string) error {
	if f.Cardinality == types.One && len(ids) > 1 {
		return types.Invalid(map[string]any{"field": f.Name},
			"The '%s' field of %s holds at most one reference.", f.Name, f.Class)
	}
	current, err := linksOn(ctx, tx, f.Relationship, f.Side, id)
	if err != nil {
		return err
	}
	for _, l := range current {
		if err := removeLink(ctx, tx, f.Relationship, l); err != nil {
			return err
		}
	}
	for _, other := range ids {
		if err := addLink(ctx, tx, f, id, other, nil); err != nil {
			return err
		}
	}
	return nil
}

// relationshipOf builds the exposed form of a link row.
func relationshipOf(ctx context.Context, q querier, rt *types.RelationshipType, l linkRow) (*types.Relationship, error) {
	fields, err := decodeFields(l.fields)
	if err != nil {
		return nil, err
	}
	if ie := rt.IndexedEnd(); ie != nil && l.position.Valid {
		fields[ie.IndexFieldName] = l.position.Int64
	}
	var fromClass, toClass string
	if err := q.QueryRowContext(ctx, `SELECT class FROM resources WHERE id = ?`, l.from).Scan(&fromClass); err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if err := q.QueryRowContext(ctx, `SELECT class FROM resources WHERE id = ?`, l.to).Scan(&toClass); err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return &types.Relationship{
		ID:        l.id,
		Type:      rt.Name,
		A:         types.Ref{Class: fromClass, ID: l.from},
		B:         types.Ref{Class: toClass, ID: l.to},
		Fields:    fields,
		CreatedAt: parseTime(l.created),
	}, nil
}
