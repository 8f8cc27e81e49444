// Package repo persists provisioning run records.
package repo

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hostgrid-io/tenant-provisioner/domains/tenants/be/service"
)

// ErrRunNotFound is returned when no run record exists for an id.
var ErrRunNotFound = errors.New("run not found")

// MemoryRepository is an in-memory RunRepository used by tests and local
// development.
type MemoryRepository struct {
	mu   sync.Mutex
	runs map[uuid.UUID]service.Run
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{runs: make(map[uuid.UUID]service.Run)}
}

func (r *MemoryRepository) Create(ctx context.Context, run service.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
	return nil
}

func (r *MemoryRepository) Finish(ctx context.Context, id uuid.UUID, status service.RunStatus, versionLabel string, errText *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return ErrRunNotFound
	}

	now := time.Now().UTC()
	run.Status = status
	run.VersionLabel = versionLabel
	run.Error = errText
	run.FinishedAt = &now
	r.runs[id] = run
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (service.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return service.Run{}, ErrRunNotFound
	}
	return run, nil
}

func (r *MemoryRepository) ListByCustomer(ctx context.Context, customer string) ([]service.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []service.Run
	for _, run := range r.runs {
		if run.CustomerID == customer {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

var _ service.RunRepository = (*MemoryRepository)(nil)
