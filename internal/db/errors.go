package db

import (
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
)

var (
	// ErrMigrationFailed indicates that schema migrations could not be
	// applied. Fatal at startup.
	ErrMigrationFailed = errors.New("migrations could not be applied")

	// ErrStorageConflict indicates a uniqueness or foreign-key violation
	// that survived the ignore-on-conflict insert semantics. This points
	// at corruption and is surfaced, never retried.
	ErrStorageConflict = errors.New("storage constraint violated")

	// ErrTxAborted indicates the underlying engine aborted the
	// transaction. The caller may retry; all writers are idempotent.
	ErrTxAborted = errors.New("transaction aborted")
)

// ClassifyError maps driver-level failures onto the store's error kinds,
// preserving the original error in the chain. Unknown errors pass through.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint:
			return fmt.Errorf("%w: %v", ErrStorageConflict, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", ErrTxAborted, err)
		}
	}

	return err
}
