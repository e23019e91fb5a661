package sqlite

import (
	"fmt"
	"regexp"
)

// Schema DDL. Statements are idempotent so Attach can run them against an
// existing database.
const (
	createResources = `CREATE TABLE IF NOT EXISTS resources (
    id TEXT PRIMARY KEY,
    class TEXT NOT NULL,
    fields BLOB,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	// Side 0 of a relationship is from_id, side 1 is to_id. Symmetric
	// relationships store one row with from_id < to_id.
	createLinks = `CREATE TABLE IF NOT EXISTS links (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    from_id TEXT NOT NULL,
    to_id TEXT NOT NULL,
    position INTEGER,
    fields BLOB,
    created_at TEXT NOT NULL
);`

	idxResourcesClass = `CREATE INDEX IF NOT EXISTS idx_resources_class ON resources(class);`
	idxLinksUnique    = `CREATE UNIQUE INDEX IF NOT EXISTS idx_links_unique ON links(type, from_id, to_id);`
	idxLinksTypeFrom  = `CREATE INDEX IF NOT EXISTS idx_links_type_from ON links(type, from_id);`
	idxLinksTypeTo    = `CREATE INDEX IF NOT EXISTS idx_links_type_to ON links(type, to_id);`
)

var schemaDDL = []string{
	createResources,
	createLinks,
	idxResourcesClass,
	idxLinksUnique,
	idxLinksTypeFrom,
	idxLinksTypeTo,
}

var classNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// uniqueIDIndex returns the DDL for the per-class unique id constraint.
func uniqueIDIndex(class string) (string, error) {
	if !classNameRe.MatchString(class) {
		return "", fmt.Errorf("invalid class name %q", class)
	}
	return fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_%s_id ON resources(id) WHERE class = '%s';",
		class, class,
	), nil
}

// linkColumns maps a relationship side to its column.
var linkColumns = [2]string{"from_id", "to_id"}
