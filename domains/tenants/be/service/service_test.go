package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hostgrid-io/tenant-provisioner/platform/go/tenant"
)

// inMemoryRuns is a map-backed RunRepository for orchestrator tests. The
// repo package ships its own implementations; importing them here would
// cycle back into this package.
type inMemoryRuns struct {
	mu        sync.Mutex
	runs      map[uuid.UUID]Run
	createErr error
}

func newInMemoryRuns() *inMemoryRuns {
	return &inMemoryRuns{runs: make(map[uuid.UUID]Run)}
}

func (r *inMemoryRuns) Create(ctx context.Context, run Run) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
	return nil
}

func (r *inMemoryRuns) Finish(ctx context.Context, id uuid.UUID, status RunStatus, versionLabel string, errText *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return errors.New("run not found")
	}
	now := time.Now().UTC()
	run.Status = status
	run.VersionLabel = versionLabel
	run.Error = errText
	run.FinishedAt = &now
	r.runs[id] = run
	return nil
}

func (r *inMemoryRuns) Get(ctx context.Context, id uuid.UUID) (Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return Run{}, errors.New("run not found")
	}
	return run, nil
}

func (r *inMemoryRuns) ListByCustomer(ctx context.Context, customer string) ([]Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Run
	for _, run := range r.runs {
		if run.CustomerID == customer {
			out = append(out, run)
		}
	}
	return out, nil
}

func (r *inMemoryRuns) single(t *testing.T) Run {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.Len(t, r.runs, 1)
	for _, run := range r.runs {
		return run
	}
	return Run{}
}

type stubLocator struct {
	ref ArtifactReference
	err error
}

func (s *stubLocator) Locate(ctx context.Context, indexPath string) (ArtifactReference, error) {
	if s.err != nil {
		return ArtifactReference{}, s.err
	}
	return s.ref, nil
}

// stubFetcher materializes a minimal tree under runDir so downstream stubs
// and the cleanup assertions operate on real paths.
type stubFetcher struct {
	err  error
	tree *WorkingTree
}

func (s *stubFetcher) Fetch(ctx context.Context, ref ArtifactReference, runDir string) (WorkingTree, error) {
	if s.err != nil {
		return WorkingTree{}, s.err
	}
	root := filepath.Join(runDir, ref.VersionLabel)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return WorkingTree{}, err
	}
	tree := WorkingTree{RunDir: runDir, Root: root}
	s.tree = &tree
	return tree, nil
}

type stubVhost struct {
	err       error
	customers []string
}

func (s *stubVhost) Write(ctx context.Context, tree WorkingTree, customer string) error {
	if s.err != nil {
		return s.err
	}
	s.customers = append(s.customers, customer)
	return nil
}

type stubDatabase struct {
	err   error
	names []string
}

func (s *stubDatabase) Provision(ctx context.Context, name string) error {
	s.names = append(s.names, name)
	return s.err
}

type stubPublisher struct {
	version DeploymentVersion
	err     error
	calls   int
}

func (s *stubPublisher) Publish(ctx context.Context, tree WorkingTree) (DeploymentVersion, error) {
	s.calls++
	if s.err != nil {
		return DeploymentVersion{}, s.err
	}
	return s.version, nil
}

type stubDNS struct {
	err   error
	fqdns []string
}

func (s *stubDNS) RegisterSubdomain(ctx context.Context, fqdn string) (DNSRecord, error) {
	if s.err != nil {
		return DNSRecord{}, s.err
	}
	s.fqdns = append(s.fqdns, fqdn)
	return DNSRecord{Name: fqdn, Type: "CNAME", TTL: 300, Target: "lb.hosting.example.com"}, nil
}

type fixture struct {
	svc       *Service
	runs      *inMemoryRuns
	locator   *stubLocator
	fetcher   *stubFetcher
	vhost     *stubVhost
	database  *stubDatabase
	publisher *stubPublisher
	dns       *stubDNS
	scratch   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		runs:      newInMemoryRuns(),
		locator:   &stubLocator{ref: ArtifactReference{ObjectKey: "builds/app-v7.zip", VersionLabel: "app-v7"}},
		fetcher:   &stubFetcher{},
		vhost:     &stubVhost{},
		database:  &stubDatabase{},
		publisher: &stubPublisher{version: DeploymentVersion{Label: "example.com-20240101-000000", BundleKey: "example.com-20240101-000000.zip"}},
		dns:       &stubDNS{},
		scratch:   t.TempDir(),
	}
	cfg := Config{
		Domain:          "example.com",
		ScratchRoot:     f.scratch,
		DatabaseHost:    "db.internal.example.com",
		DatabasePort:    5432,
		EnvironmentID:   "e-abc123",
		EnvironmentName: "webapp-prod",
	}
	stages := Stages{
		Locator:   f.locator,
		Fetcher:   f.fetcher,
		Vhost:     f.vhost,
		Database:  f.database,
		Publisher: f.publisher,
		DNS:       f.dns,
	}
	f.svc = New(cfg, stages, f.runs, zap.NewNop())
	return f
}

func (f *fixture) requireScratchEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.scratch)
	require.NoError(t, err)
	require.Empty(t, entries, "run scratch dir must be removed on every exit path")
}

func TestProvision_HappyPath(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Provision(context.Background(), "Acme")
	require.NoError(t, err)

	require.Equal(t, "acme", result.CustomerID)
	require.Equal(t, "example.com-20240101-000000", result.DeploymentVersion)
	require.Equal(t, "deployed", result.Status)
	require.Equal(t, "db.internal.example.com", result.DatabaseHost)
	require.Equal(t, "acme", result.DatabaseName)
	require.Equal(t, 5432, result.DatabasePort)
	require.Equal(t, "acme.example.com", result.Domain)
	require.Equal(t, "e-abc123", result.EnvironmentID)
	require.Equal(t, "webapp-prod", result.EnvironmentName)

	require.Equal(t, []string{"acme"}, f.vhost.customers)
	require.Equal(t, []string{"acme"}, f.database.names)
	require.Equal(t, []string{"acme.example.com"}, f.dns.fqdns)

	run := f.runs.single(t)
	require.Equal(t, RunStatusDeployed, run.Status)
	require.Equal(t, "example.com-20240101-000000", run.VersionLabel)
	require.Nil(t, run.Error)
	require.NotNil(t, run.FinishedAt)

	f.requireScratchEmpty(t)
}

func TestProvision_InvalidCustomerRejectedBeforeStages(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Provision(context.Background(), "9-bad-id")
	require.ErrorIs(t, err, tenant.ErrInvalidCustomerID)

	require.Empty(t, f.vhost.customers)
	require.Zero(t, f.publisher.calls)
	require.Empty(t, f.runs.runs, "no run record before validation passes")
}

func TestProvision_LocatorFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.locator.err = ErrVersionResolution

	_, err := f.svc.Provision(context.Background(), "acme")
	require.ErrorIs(t, err, ErrVersionResolution)

	require.Empty(t, f.vhost.customers)
	require.Zero(t, f.publisher.calls)
	require.Empty(t, f.dns.fqdns)

	run := f.runs.single(t)
	require.Equal(t, RunStatusFailed, run.Status)
	require.NotNil(t, run.Error)

	f.requireScratchEmpty(t)
}

func TestProvision_DatabaseFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	f.database.err = errors.New("schema already exists")

	result, err := f.svc.Provision(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, "deployed", result.Status)

	require.Equal(t, 1, f.publisher.calls)
	require.Equal(t, []string{"acme.example.com"}, f.dns.fqdns)
	require.Equal(t, RunStatusDeployed, f.runs.single(t).Status)
}

func TestProvision_PublishFailureAbortsDNS(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = ErrDeploymentTimeout

	_, err := f.svc.Provision(context.Background(), "acme")
	require.ErrorIs(t, err, ErrDeploymentTimeout)

	require.Empty(t, f.dns.fqdns)
	require.Equal(t, RunStatusFailed, f.runs.single(t).Status)
	f.requireScratchEmpty(t)
}

func TestProvision_DNSFailureRecordsDeployedVersion(t *testing.T) {
	f := newFixture(t)
	f.dns.err = ErrDNS

	_, err := f.svc.Provision(context.Background(), "acme")
	require.ErrorIs(t, err, ErrDNS)

	// The version was already activated; the failed run record keeps the
	// label so an operator can find what the run left behind.
	run := f.runs.single(t)
	require.Equal(t, RunStatusFailed, run.Status)
	require.Equal(t, "example.com-20240101-000000", run.VersionLabel)
	f.requireScratchEmpty(t)
}

func TestProvision_RepositoryErrorsDoNotFailRun(t *testing.T) {
	f := newFixture(t)
	f.runs.createErr = errors.New("connection refused")

	result, err := f.svc.Provision(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, "deployed", result.Status)
}

func TestRuns_ListsRecordedAttempts(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Provision(context.Background(), "acme")
	require.NoError(t, err)
	f.locator.err = ErrVersionResolution
	_, err = f.svc.Provision(context.Background(), "acme")
	require.ErrorIs(t, err, ErrVersionResolution)

	runs, err := f.svc.Runs(context.Background(), "ACME")
	require.NoError(t, err)
	require.Len(t, runs, 2)

	_, err = f.svc.Runs(context.Background(), "9-bad-id")
	require.ErrorIs(t, err, tenant.ErrInvalidCustomerID)
}
