package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hostgrid-io/tenant-provisioner/domains/tenants/be/service"
)

const runsDDL = `
CREATE TABLE IF NOT EXISTS provisioning_runs (
    run_id        UUID PRIMARY KEY,
    customer_id   TEXT NOT NULL,
    version_label TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL,
    error         TEXT,
    started_at    TIMESTAMPTZ NOT NULL,
    finished_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS provisioning_runs_customer_idx
    ON provisioning_runs (customer_id, started_at DESC)`

// PostgresRepository implements RunRepository on the platform's own
// Postgres database (not the shared tenant database server).
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository and ensures its table
// exists.
func NewPostgresRepository(ctx context.Context, pool *pgxpool.Pool) (*PostgresRepository, error) {
	if pool == nil {
		panic("pool is required")
	}
	if _, err := pool.Exec(ctx, runsDDL); err != nil {
		return nil, fmt.Errorf("ensure provisioning_runs table: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Create(ctx context.Context, run service.Run) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO provisioning_runs (run_id, customer_id, version_label, status, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.CustomerID, run.VersionLabel, string(run.Status), run.Error, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

func (r *PostgresRepository) Finish(ctx context.Context, id uuid.UUID, status service.RunStatus, versionLabel string, errText *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE provisioning_runs
		SET status = $2, version_label = $3, error = $4, finished_at = now()
		WHERE run_id = $1`,
		id, string(status), versionLabel, errText,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (service.Run, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT run_id, customer_id, version_label, status, error, started_at, finished_at
		FROM provisioning_runs WHERE run_id = $1`, id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return service.Run{}, ErrRunNotFound
		}
		return service.Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

func (r *PostgresRepository) ListByCustomer(ctx context.Context, customer string) ([]service.Run, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT run_id, customer_id, version_label, status, error, started_at, finished_at
		FROM provisioning_runs
		WHERE customer_id = $1
		ORDER BY started_at DESC`, customer)
	if err != nil {
		return nil, fmt.Errorf("list runs for %s: %w", customer, err)
	}
	defer rows.Close()

	var out []service.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func scanRun(row pgx.Row) (service.Run, error) {
	var run service.Run
	var status string
	if err := row.Scan(&run.ID, &run.CustomerID, &run.VersionLabel, &status, &run.Error, &run.StartedAt, &run.FinishedAt); err != nil {
		return service.Run{}, err
	}
	run.Status = service.RunStatus(status)
	return run, nil
}

var _ service.RunRepository = (*PostgresRepository)(nil)
