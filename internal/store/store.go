package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pharmacy-service/config"
	"pharmacy-service/internal/apperr"
	"pharmacy-service/internal/models"
	"pharmacy-service/internal/records"
	"pharmacy-service/internal/util"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

type Store struct {
	db     *sqlx.DB
	driver string
	logger *zap.Logger
}

// NewStore opens and pings the configured database
func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverPostgres
	}
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, apperr.New(apperr.KindInternal, "", "unsupported database driver %q", driver)
	}

	dsn := cfg.URL
	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConnection, err, "failed to connect to database")
	}

	if driver == DriverSQLite {
		// one writer; the stock trigger relies on serialized statements
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.KindConnection, err, "failed to ping database")
	}

	return &Store{db: db, driver: driver, logger: util.GetLogger()}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Driver() string {
	return s.driver
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperr.Wrap(apperr.KindConnection, err, "database unreachable")
	}
	return nil
}

// Execute runs a write with ? placeholders and returns the affected rows.
// Driver errors come back classified.
func (s *Store) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	defer observe("execute", time.Now())

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// Fetch selects every matching row into dest, a pointer to a slice
func (s *Store) Fetch(ctx context.Context, dest any, query string, args ...any) error {
	defer observe("fetch", time.Now())

	if err := s.db.SelectContext(ctx, dest, s.db.Rebind(query), args...); err != nil {
		return mapError(err)
	}
	return nil
}

// Get selects exactly one row into dest; no row is a NotFound error
func (s *Store) Get(ctx context.Context, dest any, query string, args ...any) error {
	defer observe("get", time.Now())

	err := s.db.GetContext(ctx, dest, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return mapError(err)
	}
	return nil
}

// Exists runs the point lookup for an entity key
func (s *Store) Exists(ctx context.Context, entity models.Entity, id string) (bool, error) {
	schema, ok := records.For(entity)
	if !ok {
		return false, apperr.Format("entity", "unknown entity %q", entity)
	}
	stmt := schema.ExistsStatement(id)

	var found []string
	if err := s.Fetch(ctx, &found, stmt.Query, stmt.Args...); err != nil {
		return false, fmt.Errorf("failed to look up %s %s: %w", entity, id, err)
	}
	return len(found) > 0, nil
}

// sqliteDSN turns on foreign keys and a busy timeout for every connection.
// SQLite leaves foreign keys off unless each connection asks for them.
func sqliteDSN(dsn string) string {
	dsn = withQueryParam(dsn, "_pragma=foreign_keys(1)")
	return withQueryParam(dsn, "_pragma=busy_timeout(5000)")
}

// withQueryParam appends param to the DSN query unless it is already set.
// A pragma is matched by name, e.g. "_pragma=foreign_keys", anything else
// by its "key=" prefix.
func withQueryParam(dsn, param string) string {
	key := param
	if i := strings.Index(param, "("); i >= 0 {
		key = param[:i]
	} else if i := strings.Index(param, "="); i >= 0 {
		key = param[:i+1]
	}
	if strings.Contains(dsn, key) {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}

func observe(op string, start time.Time) {
	util.DBOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
