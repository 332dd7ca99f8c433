// Package civilregistry connects to the state's legacy civil registry,
// a SQL Server system of record, to verify Aadhaar numbers at KYC time.
// The integration is optional: when disabled or unreachable, submitted
// numbers are stored unverified.
package civilregistry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver

	"github.com/goa-gov/sewa-connect/internal/shared/config"
)

const lookupTimeout = 5 * time.Second

// Adapter queries the registry's citizen table.
type Adapter struct {
	db    *sql.DB
	table string
}

// New opens the registry connection and verifies it.
func New(ctx context.Context, cfg config.RegistryConfig) (*Adapter, error) {
	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password)
	if cfg.SSLMode != "disable" {
		connStr += ";encrypt=true;TrustServerCertificate=true"
	}

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping registry database: %w", err)
	}

	return &Adapter{db: db, table: cfg.CitizenTable}, nil
}

// VerifyAadhaar looks the number up in the registry. found is false when
// the registry has no record; an error means the registry was unreachable
// and the caller should degrade rather than fail.
func (a *Adapter) VerifyAadhaar(ctx context.Context, aadhaarNumber string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT TOP 1 FullName FROM %s WHERE AadhaarNumber = @p1`, a.table)

	var fullName string
	err := a.db.QueryRowContext(ctx, query, aadhaarNumber).Scan(&fullName)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("registry lookup failed: %w", err)
	}
	return fullName, true, nil
}

// Health checks registry connectivity.
func (a *Adapter) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	return a.db.PingContext(ctx)
}

// Close closes the registry connection.
func (a *Adapter) Close() error {
	return a.db.Close()
}
