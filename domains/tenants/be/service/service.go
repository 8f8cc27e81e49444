// Package service sequences the tenant provisioning pipeline: artifact
// resolution, fetch, vhost injection, database provisioning, deployment
// publishing, and DNS registration.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hostgrid-io/tenant-provisioner/platform/go/tenant"
)

// IndexFileName is the transient object-key listing written by the artifact
// locator under the run scratch directory.
const IndexFileName = "object_list.txt"

// Config carries the values the orchestrator needs to assemble results and
// scope transient state. It is passed explicitly at construction; there is
// no package-level configuration.
type Config struct {
	Domain          string
	ScratchRoot     string
	DatabaseHost    string
	DatabasePort    int
	EnvironmentID   string
	EnvironmentName string
}

// ProvisioningResult is the payload returned once every stage has run.
type ProvisioningResult struct {
	CustomerID        string `json:"customerId"`
	DeploymentVersion string `json:"deploymentVersion"`
	Status            string `json:"status"`
	DatabaseHost      string `json:"databaseHost"`
	DatabaseName      string `json:"databaseName"`
	DatabasePort      int    `json:"databasePort"`
	Domain            string `json:"domain"`
	EnvironmentID     string `json:"environmentId"`
	EnvironmentName   string `json:"environmentName"`
}

// Service runs the provisioning pipeline for one tenant at a time. There is
// no locking across concurrent invocations; two simultaneous runs racing on
// version labels or DNS records are undefined behavior.
type Service struct {
	cfg    Config
	stages Stages
	runs   RunRepository
	logger *zap.Logger
}

// New constructs the orchestrator. All stages and the run repository are
// required.
func New(cfg Config, stages Stages, runs RunRepository, logger *zap.Logger) *Service {
	if cfg.Domain == "" {
		panic("domain is required")
	}
	if cfg.ScratchRoot == "" {
		panic("scratch root is required")
	}
	if stages.Locator == nil || stages.Fetcher == nil || stages.Vhost == nil ||
		stages.Database == nil || stages.Publisher == nil || stages.DNS == nil {
		panic("all pipeline stages are required")
	}
	if runs == nil {
		panic("run repository is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Service{cfg: cfg, stages: stages, runs: runs, logger: logger}
}

// Provision executes the full pipeline for customerID and returns the
// aggregate result. The identifier is validated before any side effect.
// Every stage failure except database provisioning aborts the remaining
// stages; nothing undoes already-completed stages. Transient run state is
// removed on every exit path.
func (s *Service) Provision(ctx context.Context, customerID string) (ProvisioningResult, error) {
	customer, err := tenant.NormalizeCustomerID(customerID)
	if err != nil {
		return ProvisioningResult{}, err
	}

	runID := uuid.New()
	logger := s.logger.With(
		zap.String("run_id", runID.String()),
		zap.String("customer", customer),
	)

	runDir := filepath.Join(s.cfg.ScratchRoot, "run-"+shortRunID(runID))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return ProvisioningResult{}, fmt.Errorf("create run scratch dir: %w", err)
	}
	defer func() {
		if err := (WorkingTree{RunDir: runDir}).Cleanup(); err != nil {
			logger.Error("clean up run scratch dir", zap.String("dir", runDir), zap.Error(err))
		}
	}()

	s.recordStart(ctx, logger, runID, customer)

	result, err := s.runPipeline(ctx, logger, customer, runDir)
	if err != nil {
		s.recordFinish(ctx, logger, runID, RunStatusFailed, result.DeploymentVersion, err)
		return ProvisioningResult{}, err
	}

	s.recordFinish(ctx, logger, runID, RunStatusDeployed, result.DeploymentVersion, nil)
	return result, nil
}

func (s *Service) runPipeline(ctx context.Context, logger *zap.Logger, customer, runDir string) (ProvisioningResult, error) {
	indexPath := filepath.Join(runDir, IndexFileName)

	ref, err := s.stages.Locator.Locate(ctx, indexPath)
	if err != nil {
		return ProvisioningResult{}, err
	}
	logger.Info("resolved live artifact",
		zap.String("object_key", ref.ObjectKey),
		zap.String("version_label", ref.VersionLabel),
	)

	tree, err := s.stages.Fetcher.Fetch(ctx, ref, runDir)
	if err != nil {
		return ProvisioningResult{}, err
	}

	if err := s.stages.Vhost.Write(ctx, tree, customer); err != nil {
		return ProvisioningResult{}, err
	}

	// Database provisioning is deliberately non-fatal: a failure here (for
	// example the database already exists) is logged and the pipeline
	// proceeds. Callers relying on database availability must verify it
	// independently.
	dbName := tenant.DatabaseName(customer)
	if err := s.stages.Database.Provision(ctx, dbName); err != nil {
		logger.Warn("database provisioning failed, continuing",
			zap.String("database", dbName),
			zap.Error(err),
		)
	}

	version, err := s.stages.Publisher.Publish(ctx, tree)
	if err != nil {
		return ProvisioningResult{}, err
	}
	logger.Info("new application version deployed", zap.String("version_label", version.Label))

	fqdn := tenant.FQDN(customer, s.cfg.Domain)
	record, err := s.stages.DNS.RegisterSubdomain(ctx, fqdn)
	if err != nil {
		return ProvisioningResult{DeploymentVersion: version.Label}, err
	}
	logger.Info("dns record created", zap.String("name", record.Name), zap.String("target", record.Target))

	return ProvisioningResult{
		CustomerID:        customer,
		DeploymentVersion: version.Label,
		Status:            "deployed",
		DatabaseHost:      s.cfg.DatabaseHost,
		DatabaseName:      dbName,
		DatabasePort:      s.cfg.DatabasePort,
		Domain:            fqdn,
		EnvironmentID:     s.cfg.EnvironmentID,
		EnvironmentName:   s.cfg.EnvironmentName,
	}, nil
}

// Runs returns the recorded provisioning attempts for a customer.
func (s *Service) Runs(ctx context.Context, customerID string) ([]Run, error) {
	customer, err := tenant.NormalizeCustomerID(customerID)
	if err != nil {
		return nil, err
	}
	return s.runs.ListByCustomer(ctx, customer)
}

func (s *Service) recordStart(ctx context.Context, logger *zap.Logger, runID uuid.UUID, customer string) {
	run := Run{
		ID:         runID,
		CustomerID: customer,
		Status:     RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		logger.Error("record run start", zap.Error(err))
	}
}

func (s *Service) recordFinish(ctx context.Context, logger *zap.Logger, runID uuid.UUID, status RunStatus, versionLabel string, runErr error) {
	var errText *string
	if runErr != nil {
		msg := runErr.Error()
		errText = &msg
	}
	if err := s.runs.Finish(ctx, runID, status, versionLabel, errText); err != nil {
		logger.Error("record run finish", zap.Error(err))
	}
}

func shortRunID(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}
