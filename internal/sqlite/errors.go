package sqlite

import (
	"errors"
	"fmt"
	"strconv"

	sqlitedrv "modernc.org/sqlite"

	"github.com/mesh-intelligence/lyphgraph/pkg/types"
)

// CodePrefix starts the Code of every BackendError.
const CodePrefix = "SQLite."

// BackendError wraps a failure reported by the database.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("sqlite %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Code returns the SQLite result code with CodePrefix, e.g. "SQLite.19"
// for a constraint violation, or "SQLite.error" when the driver did not
// supply one.
func (e *BackendError) Code() string {
	var se *sqlitedrv.Error
	if errors.As(e.Err, &se) {
		return CodePrefix + strconv.Itoa(se.Code())
	}
	return CodePrefix + "error"
}

// wrap turns driver failures into BackendErrors. Domain errors and
// lifecycle sentinels pass through unchanged.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *types.DomainError
	var be *BackendError
	switch {
	case errors.As(err, &de), errors.As(err, &be):
		return err
	case errors.Is(err, types.ErrDetached), errors.Is(err, types.ErrAlreadyAttached):
		return err
	}
	return &BackendError{Op: op, Err: err}
}
