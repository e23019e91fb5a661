// This file provides JSONL snapshots of the database: Export writes one
// file per table with the temp-file, fsync, rename pattern and Import
// loads them back in one transaction.

package sqlite

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Snapshot file names inside an export directory.
const (
	ResourcesFile = "resources.jsonl"
	LinksFile     = "links.jsonl"
)

type resourceRecord struct {
	ID        string         `json:"id"`
	Class     string         `json:"class"`
	Fields    map[string]any `json:"fields,omitempty"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

type linkRecord struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	From      string         `json:"from_id"`
	To        string         `json:"to_id"`
	Position  *int64         `json:"position,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// Export writes resources.jsonl and links.jsonl into dir.
func (b *Backend) Export(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating export dir: %w", err)
	}
	var resources, links []json.RawMessage
	err := b.read(ctx, "export", func(q querier) error {
		rows, err := q.QueryContext(ctx, selectResource+` ORDER BY rowid`)
		if err != nil {
			return err
		}
		list, err := scanResources(rows)
		if err != nil {
			return err
		}
		for _, r := range list {
			fields, err := decodeFields(r.fields)
			if err != nil {
				return err
			}
			rec, err := json.Marshal(resourceRecord{
				ID: r.id, Class: r.class, Fields: fields, CreatedAt: r.created, UpdatedAt: r.updated,
			})
			if err != nil {
				return fmt.Errorf("marshaling resource %s: %w", r.id, err)
			}
			resources = append(resources, rec)
		}

		rows, err = q.QueryContext(ctx, selectLink+` ORDER BY rowid`)
		if err != nil {
			return err
		}
		ls, err := scanLinks(rows)
		if err != nil {
			return err
		}
		for _, l := range ls {
			fields, err := decodeFields(l.fields)
			if err != nil {
				return err
			}
			lr := linkRecord{ID: l.id, Type: l.typ, From: l.from, To: l.to, Fields: fields, CreatedAt: l.created}
			if l.position.Valid {
				p := l.position.Int64
				lr.Position = &p
			}
			rec, err := json.Marshal(lr)
			if err != nil {
				return fmt.Errorf("marshaling link %s: %w", l.id, err)
			}
			links = append(links, rec)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := writeJSONL(filepath.Join(dir, ResourcesFile), resources); err != nil {
		return err
	}
	return writeJSONL(filepath.Join(dir, LinksFile), links)
}

// Import loads a snapshot written by Export. Rows with an existing id are
// overwritten. Missing files count as empty.
func (b *Backend) Import(ctx context.Context, dir string) (resources, links int, err error) {
	resRecs, err := readJSONLIfExists(filepath.Join(dir, ResourcesFile))
	if err != nil {
		return 0, 0, err
	}
	linkRecs, err := readJSONLIfExists(filepath.Join(dir, LinksFile))
	if err != nil {
		return 0, 0, err
	}

	err = b.write(ctx, "import", func(tx *sql.Tx) error {
		for _, raw := range resRecs {
			var r resourceRecord
			if err := json.Unmarshal(raw, &r); err != nil || r.ID == "" || r.Class == "" {
				continue
			}
			blob, err := encodeFields(r.Fields)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO resources (id, class, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
				r.ID, r.Class, blob, r.CreatedAt, r.UpdatedAt,
			); err != nil {
				return err
			}
			resources++
		}
		for _, raw := range linkRecs {
			var l linkRecord
			if err := json.Unmarshal(raw, &l); err != nil || l.ID == "" || l.Type == "" {
				continue
			}
			blob, err := encodeFields(l.Fields)
			if err != nil {
				return err
			}
			var pos sql.NullInt64
			if l.Position != nil {
				pos = sql.NullInt64{Int64: *l.Position, Valid: true}
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO links (id, type, from_id, to_id, position, fields, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				l.ID, l.Type, l.From, l.To, pos, blob, l.CreatedAt,
			); err != nil {
				return err
			}
			links++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return resources, links, nil
}

func readJSONLIfExists(path string) ([]json.RawMessage, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return readJSONL(path)
}

// readJSONL reads a JSONL file and returns each non-empty, parseable line
// as a json.RawMessage. Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to path.
func writeJSONL(path string, records []json.RawMessage) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(what string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%s: %w", what, err)
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail("writing record", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail("writing newline", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
