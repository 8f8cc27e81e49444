package provisioning

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DatabaseProvisioner creates the tenant schema on the shared database
// server and scopes the shared application role to it. The orchestrator
// treats its errors as non-fatal; the stage itself only guarantees that a
// failed attempt leaves no partial DDL behind (single transaction,
// rolled back on error).
type DatabaseProvisioner struct {
	pool    *pgxpool.Pool
	appRole string
	logger  *zap.Logger
}

// NewDatabaseProvisioner constructs the database stage. appRole is the
// shared principal the web tier connects as.
func NewDatabaseProvisioner(pool *pgxpool.Pool, appRole string, logger *zap.Logger) *DatabaseProvisioner {
	if pool == nil {
		panic("database pool is required")
	}
	if appRole == "" {
		panic("application role is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &DatabaseProvisioner{pool: pool, appRole: appRole, logger: logger}
}

// Provision creates the schema named name and grants the application role
// full access, including default privileges for tables created later. The
// schema is created once and never updated or deleted by this pipeline; a
// pre-existing schema surfaces as an error here.
func (p *DatabaseProvisioner) Provision(ctx context.Context, name string) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	schema := pgx.Identifier{name}.Sanitize()
	role := pgx.Identifier{p.appRole}.Sanitize()

	if _, err := tx.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema)); err != nil {
		return fmt.Errorf("create schema %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("GRANT ALL ON SCHEMA %s TO %s", schema, role)); err != nil {
		return fmt.Errorf("grant schema %s to %s: %w", name, p.appRole, err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA %s GRANT ALL ON TABLES TO %s", schema, role)); err != nil {
		return fmt.Errorf("default privileges in %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("ALTER DEFAULT PRIVILEGES IN SCHEMA %s GRANT ALL ON SEQUENCES TO %s", schema, role)); err != nil {
		return fmt.Errorf("default sequence privileges in %s: %w", name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	p.logger.Info("tenant database provisioned", zap.String("schema", name), zap.String("role", p.appRole))
	return nil
}
