package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/newrelic/go-agent/v3/integrations/nrpq" // Registers "nrpostgres" driver
	"github.com/newrelic/go-agent/v3/newrelic"

	"payrecon/internal/config"
	"payrecon/internal/repository"
	"payrecon/internal/repository/postgres"
	"payrecon/internal/repository/sqlite"
)

// Store bundles the database handle with the repositories built on it.
type Store struct {
	DB       *sql.DB
	Orders   repository.PaymentOrderRepository
	Bookings repository.BookingRepository
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// NewStore opens the configured database and builds its repositories.
func NewStore(ctx context.Context, cfg config.DatabaseConfig, nrApp *newrelic.Application) (*Store, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Store{
			DB:       db,
			Orders:   sqlite.NewPaymentOrderRepository(db),
			Bookings: sqlite.NewBookingRepository(db),
		}, nil

	case "postgres":
		db, err := NewDatabase(ctx, cfg, nrApp)
		if err != nil {
			return nil, err
		}
		return &Store{
			DB:       db,
			Orders:   postgres.NewPaymentOrderRepository(db),
			Bookings: postgres.NewBookingRepository(db),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewDatabase creates a new PostgreSQL connection pool.
// If nrApp is provided, it uses New Relic instrumented driver for automatic SQL tracing.
func NewDatabase(ctx context.Context, cfg config.DatabaseConfig, nrApp *newrelic.Application) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	driver := "postgres"
	if nrApp != nil {
		driver = "nrpostgres"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database with %s: %w", driver, err)
	}

	// Webhook batches are small and short-lived; a modest pool is enough.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
