package store

import (
	"context"
	"fmt"

	"pharmacy-service/internal/apperr"

	"go.uber.org/zap"
)

const (
	StockTriggerName       = "update_medicine_stock"
	QuantityConstraintName = "check_sales_item_quantity_positive"
)

// Migration is one schema version; each dialect lists its own statements
type Migration struct {
	Version  int
	Name     string
	Postgres []string
	SQLite   []string
}

func (m Migration) statements(driver string) []string {
	if driver == DriverSQLite {
		return m.SQLite
	}
	return m.Postgres
}

// Migrations is the ordered schema history
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "create_pharmacy_tables",
		Postgres: []string{
			`CREATE TABLE IF NOT EXISTS supplier (
				supplier_id VARCHAR(10) PRIMARY KEY,
				s_name VARCHAR(100) NOT NULL,
				contact_number VARCHAR(10) NOT NULL,
				email VARCHAR(100) NOT NULL,
				address VARCHAR(255) NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS medicine (
				medicine_id VARCHAR(10) PRIMARY KEY,
				m_name VARCHAR(100) NOT NULL,
				brand VARCHAR(100) NOT NULL,
				batch_number VARCHAR(20) NOT NULL,
				expiry_date DATE NOT NULL,
				quantity INTEGER NOT NULL CHECK (quantity >= 0),
				price NUMERIC(10,2) NOT NULL,
				supplier_id VARCHAR(10) NOT NULL REFERENCES supplier(supplier_id)
			)`,
			`CREATE TABLE IF NOT EXISTS customer (
				customer_id VARCHAR(10) PRIMARY KEY,
				c_name VARCHAR(100) NOT NULL,
				contact_number VARCHAR(10) NOT NULL,
				email VARCHAR(100) NOT NULL,
				address VARCHAR(255) NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS prescription (
				prescription_id VARCHAR(10) PRIMARY KEY,
				customer_id VARCHAR(10) NOT NULL REFERENCES customer(customer_id),
				doctor_name VARCHAR(100) NOT NULL,
				prescription_date DATE NOT NULL,
				dosage VARCHAR(100) NOT NULL,
				frequency VARCHAR(100) NOT NULL,
				duration VARCHAR(100) NOT NULL,
				additional_instructions VARCHAR(255) NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS sales (
				sale_id VARCHAR(10) PRIMARY KEY,
				customer_id VARCHAR(10) NOT NULL REFERENCES customer(customer_id),
				sale_date DATE NOT NULL,
				total_amount NUMERIC(10,2) NOT NULL,
				payment_method VARCHAR(20) NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS sales_items (
				sale_item_id VARCHAR(10) PRIMARY KEY,
				sale_id VARCHAR(10) NOT NULL REFERENCES sales(sale_id),
				medicine_id VARCHAR(10) NOT NULL REFERENCES medicine(medicine_id),
				quantity INTEGER NOT NULL,
				price_per_unit NUMERIC(10,2) NOT NULL,
				subtotal NUMERIC(10,2) NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS credentials (
				username VARCHAR(50) PRIMARY KEY,
				password VARCHAR(100) NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS processed_events (
				event_id VARCHAR(64) PRIMARY KEY,
				event_type VARCHAR(50) NOT NULL,
				processed_at TIMESTAMP NOT NULL DEFAULT NOW()
			)`,
		},
		SQLite: []string{
			`CREATE TABLE IF NOT EXISTS supplier (
				supplier_id TEXT PRIMARY KEY,
				s_name TEXT NOT NULL,
				contact_number TEXT NOT NULL,
				email TEXT NOT NULL,
				address TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS medicine (
				medicine_id TEXT PRIMARY KEY,
				m_name TEXT NOT NULL,
				brand TEXT NOT NULL,
				batch_number TEXT NOT NULL,
				expiry_date TEXT NOT NULL,
				quantity INTEGER NOT NULL CHECK (quantity >= 0),
				price REAL NOT NULL,
				supplier_id TEXT NOT NULL REFERENCES supplier(supplier_id)
			)`,
			`CREATE TABLE IF NOT EXISTS customer (
				customer_id TEXT PRIMARY KEY,
				c_name TEXT NOT NULL,
				contact_number TEXT NOT NULL,
				email TEXT NOT NULL,
				address TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS prescription (
				prescription_id TEXT PRIMARY KEY,
				customer_id TEXT NOT NULL REFERENCES customer(customer_id),
				doctor_name TEXT NOT NULL,
				prescription_date TEXT NOT NULL,
				dosage TEXT NOT NULL,
				frequency TEXT NOT NULL,
				duration TEXT NOT NULL,
				additional_instructions TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS sales (
				sale_id TEXT PRIMARY KEY,
				customer_id TEXT NOT NULL REFERENCES customer(customer_id),
				sale_date TEXT NOT NULL,
				total_amount REAL NOT NULL,
				payment_method TEXT NOT NULL
			)`,
			// sqlite cannot add a constraint to an existing table, so it is declared here
			`CREATE TABLE IF NOT EXISTS sales_items (
				sale_item_id TEXT PRIMARY KEY,
				sale_id TEXT NOT NULL REFERENCES sales(sale_id),
				medicine_id TEXT NOT NULL REFERENCES medicine(medicine_id),
				quantity INTEGER NOT NULL,
				price_per_unit REAL NOT NULL,
				subtotal REAL NOT NULL,
				CONSTRAINT check_sales_item_quantity_positive CHECK (quantity > 0)
			)`,
			`CREATE TABLE IF NOT EXISTS credentials (
				username TEXT PRIMARY KEY,
				password TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS processed_events (
				event_id TEXT PRIMARY KEY,
				event_type TEXT NOT NULL,
				processed_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		},
	},
	{
		Version: 2,
		Name:    "add_sales_item_quantity_check",
		Postgres: []string{
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conname = 'check_sales_item_quantity_positive'
						AND conrelid = 'sales_items'::regclass
				) THEN
					ALTER TABLE sales_items
						ADD CONSTRAINT check_sales_item_quantity_positive CHECK (quantity > 0);
				END IF;
			END
			$$`,
		},
	},
	{
		Version: 3,
		Name:    "create_stock_trigger",
		Postgres: []string{
			`CREATE OR REPLACE FUNCTION update_medicine_stock() RETURNS TRIGGER AS $$
			BEGIN
				UPDATE medicine
					SET quantity = quantity - NEW.quantity
					WHERE medicine_id = NEW.medicine_id AND quantity >= NEW.quantity;
				IF NOT FOUND THEN
					RAISE EXCEPTION 'insufficient stock for medicine %', NEW.medicine_id
						USING ERRCODE = 'PH001';
				END IF;
				RETURN NEW;
			END;
			$$ LANGUAGE plpgsql`,
			`DROP TRIGGER IF EXISTS update_medicine_stock ON sales_items`,
			`CREATE TRIGGER update_medicine_stock
				AFTER INSERT ON sales_items
				FOR EACH ROW EXECUTE FUNCTION update_medicine_stock()`,
		},
		SQLite: []string{
			`CREATE TRIGGER IF NOT EXISTS update_medicine_stock
				BEFORE INSERT ON sales_items
				FOR EACH ROW
				BEGIN
					SELECT RAISE(ABORT, 'insufficient stock')
						WHERE COALESCE((SELECT quantity FROM medicine WHERE medicine_id = NEW.medicine_id), 0) < NEW.quantity;
					UPDATE medicine SET quantity = quantity - NEW.quantity WHERE medicine_id = NEW.medicine_id;
				END`,
		},
	},
}

func (s *Store) migrationsTable() string {
	if s.driver == DriverSQLite {
		return `CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`
	}
	return `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		applied_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`
}

// AppliedVersions lists the recorded schema versions in ascending order
func (s *Store) AppliedVersions(ctx context.Context) ([]int, error) {
	var versions []int
	if err := s.Fetch(ctx, &versions, "SELECT version FROM schema_migrations ORDER BY version"); err != nil {
		return nil, fmt.Errorf("failed to read schema versions: %w", err)
	}
	return versions, nil
}

// Migrate applies every pending migration, each in its own transaction,
// and returns how many were applied. Running it again is a no-op.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	if _, err := s.db.ExecContext(ctx, s.migrationsTable()); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations: %w", mapError(err))
	}

	versions, err := s.AppliedVersions(ctx)
	if err != nil {
		return 0, err
	}
	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	count := 0
	for _, m := range Migrations {
		if applied[m.Version] {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return count, err
		}
		count++
		s.logger.Info("Migration applied",
			zap.Int("version", m.Version),
			zap.String("name", m.Name),
			zap.String("driver", s.driver))
	}
	return count, nil
}

func (s *Store) apply(ctx context.Context, m Migration) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.Version, mapError(err))
	}
	defer tx.Rollback()

	for _, stmt := range m.statements(s.driver) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, mapError(err))
		}
	}

	if _, err := tx.ExecContext(ctx, s.db.Rebind("INSERT INTO schema_migrations (version, name) VALUES (?, ?)"), m.Version, m.Name); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, mapError(err))
	}

	return tx.Commit()
}

// VerifyStockGuards checks the catalog for the sale-item check constraint
// and the stock trigger.
func (s *Store) VerifyStockGuards(ctx context.Context) error {
	var triggerQuery, constraintQuery string
	if s.driver == DriverSQLite {
		triggerQuery = "SELECT COUNT(*) FROM sqlite_master WHERE type = 'trigger' AND name = ?"
		constraintQuery = "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'sales_items' AND sql LIKE '%' || ? || '%'"
	} else {
		triggerQuery = "SELECT COUNT(*) FROM pg_trigger WHERE tgname = ? AND tgrelid = to_regclass('sales_items') AND NOT tgisinternal"
		constraintQuery = "SELECT COUNT(*) FROM pg_constraint WHERE conname = ? AND conrelid = to_regclass('sales_items')"
	}

	var n int
	if err := s.Get(ctx, &n, triggerQuery, StockTriggerName); err != nil {
		return fmt.Errorf("failed to look up trigger: %w", err)
	}
	if n == 0 {
		return apperr.New(apperr.KindInternal, "", "trigger %s is not installed", StockTriggerName)
	}

	if err := s.Get(ctx, &n, constraintQuery, QuantityConstraintName); err != nil {
		return fmt.Errorf("failed to look up constraint: %w", err)
	}
	if n == 0 {
		return apperr.New(apperr.KindInternal, "", "constraint %s is not installed", QuantityConstraintName)
	}
	return nil
}
