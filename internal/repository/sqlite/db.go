package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"

	"payrecon/internal/repository/postgres"
)

// Open opens (or creates) a SQLite database at the given path and ensures the
// payment_orders and bookings tables exist. Pass ":memory:" for an in-memory
// database.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

// dsn carries the pragmas so each pooled connection gets them, and a second
// writer waits on the lock instead of failing with SQLITE_BUSY.
func dsn(path string) string {
	if path == ":memory:" {
		return path
	}

	name := path
	if !strings.HasPrefix(name, "file:") {
		name = "file:" + name
	}
	sep := "?"
	if strings.Contains(name, "?") {
		sep = "&"
	}
	return name + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func createTables(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS payment_orders (
			id TEXT PRIMARY KEY,
			correlation_code TEXT NOT NULL,
			expected_amount TEXT NOT NULL,
			bank_account_id TEXT,
			status TEXT NOT NULL,
			matched_mutation_id TEXT,
			paid_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_orders_code_status ON payment_orders(correlation_code, status)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			booking_code TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

var placeholderPattern = regexp.MustCompile(`\$\d+`)

// rebindQuerier rewrites PostgreSQL "$n" placeholders to "?". The shared
// queries reference each placeholder once and in ascending order.
type rebindQuerier struct {
	db *sql.DB
}

func rebind(query string) string {
	return placeholderPattern.ReplaceAllString(query, "?")
}

func (q rebindQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, rebind(query), args...)
}

func (q rebindQuerier) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, rebind(query), args...)
}

func (q rebindQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, rebind(query), args...)
}

// NewPaymentOrderRepository returns the SQL payment order repository bound to SQLite.
func NewPaymentOrderRepository(db *sql.DB) *postgres.PaymentOrderRepository {
	return postgres.NewPaymentOrderRepositoryWithQuerier(rebindQuerier{db: db})
}

// NewBookingRepository returns the SQL booking repository bound to SQLite.
func NewBookingRepository(db *sql.DB) *postgres.BookingRepository {
	return postgres.NewBookingRepositoryWithQuerier(rebindQuerier{db: db})
}

var _ postgres.Querier = rebindQuerier{}
