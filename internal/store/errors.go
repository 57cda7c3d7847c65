package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"pharmacy-service/internal/apperr"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	// stockErrCode is the SQLSTATE raised by the Postgres stock trigger
	stockErrCode = "PH001"
	// stockErrMarker is the RAISE(ABORT) message of the SQLite stock trigger
	stockErrMarker = "insufficient stock"
)

// mapError classifies a driver error. It is the only place that looks at
// driver error codes or messages.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return mapPostgres(pqErr)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return mapSQLite(liteErr)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return apperr.Wrap(apperr.KindConnection, err, "database connection failed")
	}

	return apperr.Wrap(apperr.KindInternal, err, "database error")
}

func mapPostgres(err *pq.Error) error {
	switch {
	case err.Code == stockErrCode:
		return apperr.Wrap(apperr.KindStockInsufficient, err, "insufficient stock")
	case err.Code == "23505":
		return apperr.Wrap(apperr.KindDuplicate, err, "record already exists")
	case err.Code == "23503":
		return apperr.Wrap(apperr.KindConstraint, err, "foreign key constraint violated")
	case err.Code == "23514":
		return apperr.Wrap(apperr.KindConstraint, err, "check constraint %s violated", err.Constraint)
	case err.Code.Class() == "08":
		return apperr.Wrap(apperr.KindConnection, err, "database connection failed")
	default:
		return apperr.Wrap(apperr.KindInternal, err, "database error")
	}
}

func mapSQLite(err *sqlite.Error) error {
	code := err.Code()
	msg := err.Error()

	switch {
	case strings.Contains(msg, stockErrMarker):
		return apperr.Wrap(apperr.KindStockInsufficient, err, "insufficient stock")
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return apperr.Wrap(apperr.KindDuplicate, err, "record already exists")
	case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return apperr.Wrap(apperr.KindConstraint, err, "foreign key constraint violated")
	case code == sqlite3.SQLITE_CONSTRAINT_CHECK:
		return apperr.Wrap(apperr.KindConstraint, err, "check constraint violated")
	case code&0xff == sqlite3.SQLITE_CONSTRAINT:
		return apperr.Wrap(apperr.KindConstraint, err, "constraint violated")
	case code&0xff == sqlite3.SQLITE_BUSY || code&0xff == sqlite3.SQLITE_CANTOPEN:
		return apperr.Wrap(apperr.KindConnection, err, "database unavailable")
	default:
		return apperr.Wrap(apperr.KindInternal, err, "database error")
	}
}
