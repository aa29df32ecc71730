package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"paymentcore.backend/internal/config"
)

// sqlOpen and dbPing are package vars so tests can substitute them
// without a real Postgres instance.
var (
	sqlOpen = sql.Open
	dbPing  = func(db *sql.DB) error { return db.Ping() }
)

// NewConnection opens a *sql.DB against cfg and verifies it with a
// ping, using lib/pq and a key=value DSN. GORM does not share it:
// cmd/server/main.go opens its own pool through gorm.io/driver/postgres
// (pgx) with the URL-form DSN. This standalone connection exists for
// callers that only need the raw database/sql handle, e.g. migrations
// tooling.
func NewConnection(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sqlOpen("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := dbPing(db); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
