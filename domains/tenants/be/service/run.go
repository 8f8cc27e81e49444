package service

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunStatus tracks the lifecycle of one provisioning run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusDeployed RunStatus = "deployed"
	RunStatusFailed   RunStatus = "failed"
)

// Run is the durable record of one provisioning attempt. The pipeline has
// no compensation on partial failure, so run records are the operator's
// trail of what a failed run left behind.
type Run struct {
	ID           uuid.UUID
	CustomerID   string
	VersionLabel string
	Status       RunStatus
	Error        *string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// RunRepository persists provisioning run records. Implementations must not
// fail the run: the orchestrator logs repository errors and proceeds.
type RunRepository interface {
	Create(ctx context.Context, run Run) error
	Finish(ctx context.Context, id uuid.UUID, status RunStatus, versionLabel string, errText *string) error
	Get(ctx context.Context, id uuid.UUID) (Run, error)
	ListByCustomer(ctx context.Context, customer string) ([]Run, error)
}
