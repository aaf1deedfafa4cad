package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net"

	"github.com/lib/pq"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
)

// classify wraps a driver error with context and marks it with the error
// class callers branch on: missing rows are ErrNotFound, unique violations
// ErrConflict, and connection level failures ErrTransient.
func classify(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	wrapped := errors.Wrapf(err, format, args...)

	if errors.Is(err, sql.ErrNoRows) {
		return errors.Mark(wrapped, errors.ErrNotFound)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return errors.Mark(wrapped, errors.ErrConflict)
		case isTransientClass(pqErr.Code.Class()):
			return errors.Transient(wrapped)
		}
		return wrapped
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return errors.Transient(wrapped)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errors.Transient(wrapped)
	}
	return wrapped
}

// connection exception, insufficient resources, operator intervention
func isTransientClass(c pq.ErrorClass) bool {
	switch c {
	case "08", "53", "57":
		return true
	}
	return false
}
