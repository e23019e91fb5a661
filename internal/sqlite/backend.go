// Package sqlite implements the SQLite storage backend for lyphgraph.
// Entities live in the resources table and every relationship instance is
// one row of the links table; a link and its reverse are the same row.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// DBFile is the database file name inside the data directory.
const DBFile = "lyphgraph.db"

var _ types.Storage = (*Backend)(nil)

// Catalog resolves the class and relationship names stored in rows. The
// entity class registry satisfies it.
type Catalog interface {
	ClassOf(name string) (*types.EntityClass, error)
	Relationship(name string) (*types.RelationshipType, error)
}

// Backend implements types.Storage on SQLite.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	catalog  Catalog
	log      *zap.SugaredLogger
}

// NewBackend creates a new SQLite backend instance. The backend is not
// attached; call Attach with a Config to open the database.
func NewBackend(catalog Catalog, log *zap.SugaredLogger) *Backend {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Backend{catalog: catalog, log: log}
}

// Attach opens (or creates) the database in config.DataDir and ensures the
// schema exists. Existing data is kept.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFile)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return wrap("open", err)
	}
	// One connection serializes writers; transactions never wait on the
	// pool because helpers only use the *sql.Tx they were given.
	db.SetMaxOpenConns(1)

	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return wrap("create schema", err)
		}
	}

	b.db = db
	b.config = config
	b.attached = true
	b.log.Debugw("sqlite attached", "path", dbPath)
	return nil
}

// Detach closes the database. After Detach every operation returns
// ErrDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return wrap("close", err)
		}
		b.db = nil
	}
	b.attached = false
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// read runs fn against the database under the read lock.
func (b *Backend) read(ctx context.Context, op string, fn func(q querier) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrDetached
	}
	return wrap(op, fn(b.db))
}

// write runs fn in one transaction. Any error rolls the transaction back.
func (b *Backend) write(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrDetached
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return wrap(op, err)
	}
	if err := tx.Commit(); err != nil {
		return wrap(op, err)
	}
	return nil
}

// generateUUID generates a new UUID v7 for entity and link ids.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fall back to v4 if v7 generation fails.
		return uuid.New().String()
	}
	return id.String()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
