package provisioning

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hostgrid-io/tenant-provisioner/domains/tenants/be/service"
	"github.com/hostgrid-io/tenant-provisioner/platform/go/archive"
	"github.com/hostgrid-io/tenant-provisioner/platform/go/deploy"
	"github.com/hostgrid-io/tenant-provisioner/platform/go/retry"
)

// versionLabelFormat is the compact UTC timestamp appended to the domain to
// form a version label. Two runs for the same domain inside one second
// collide; the platform rejects the duplicate registration.
const versionLabelFormat = "20060102-150405"

// PublisherConfig tunes the publish stage.
type PublisherConfig struct {
	Domain string
	Poll   retry.Config
}

// DeploymentPublisher repackages a working tree, uploads the bundle,
// registers it as a new application version, waits for processing, and
// activates it on the configured environment.
type DeploymentPublisher struct {
	store    ObjectStore
	platform DeployPlatform
	cfg      PublisherConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewDeploymentPublisher constructs the publish stage.
func NewDeploymentPublisher(store ObjectStore, platform DeployPlatform, cfg PublisherConfig, logger *zap.Logger) *DeploymentPublisher {
	if store == nil || platform == nil {
		panic("object store and deploy platform are required")
	}
	if cfg.Domain == "" {
		panic("domain is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &DeploymentPublisher{store: store, platform: platform, cfg: cfg, logger: logger, now: time.Now}
}

// Publish runs the archive/upload/register/poll/activate sequence. The
// processing poll is bounded: backoff grows between attempts and the
// attempt budget (plus any context deadline) caps the wait, surfacing a
// timeout as a distinct error from other deployment failures. Activation
// is fire-and-forget; environment convergence is not awaited.
func (p *DeploymentPublisher) Publish(ctx context.Context, tree service.WorkingTree) (service.DeploymentVersion, error) {
	label := fmt.Sprintf("%s-%s", p.cfg.Domain, p.now().UTC().Format(versionLabelFormat))
	bundleKey := label + ArchiveSuffix
	bundlePath := filepath.Join(tree.RunDir, bundleKey)

	if err := archive.Compress(tree.Root, bundlePath); err != nil {
		return service.DeploymentVersion{}, fmt.Errorf("%w: %v", service.ErrDeployment, err)
	}

	if err := p.store.Upload(ctx, bundleKey, bundlePath); err != nil {
		return service.DeploymentVersion{}, fmt.Errorf("%w: %v", service.ErrDeployment, err)
	}

	if err := p.platform.RegisterVersion(ctx, label, p.store.Bucket(), bundleKey); err != nil {
		return service.DeploymentVersion{}, fmt.Errorf("%w: %v", service.ErrDeployment, err)
	}
	p.logger.Info("application version registered", zap.String("version_label", label))

	if err := p.waitProcessed(ctx, label); err != nil {
		return service.DeploymentVersion{}, err
	}

	if err := p.platform.ActivateVersion(ctx, label); err != nil {
		return service.DeploymentVersion{}, fmt.Errorf("%w: %v", service.ErrDeployment, err)
	}
	p.logger.Info("environment update requested", zap.String("version_label", label))

	return service.DeploymentVersion{Label: label, BundleKey: bundleKey}, nil
}

func (p *DeploymentPublisher) waitProcessed(ctx context.Context, label string) error {
	err := retry.Poll(ctx, p.cfg.Poll, func(ctx context.Context) (bool, error) {
		status, err := p.platform.VersionStatus(ctx, label)
		if err != nil {
			return false, fmt.Errorf("%w: %v", service.ErrDeployment, err)
		}
		switch status {
		case deploy.StatusProcessed:
			return true, nil
		case deploy.StatusFailed:
			return false, fmt.Errorf("%w: version %s failed processing", service.ErrDeployment, label)
		default:
			return false, nil
		}
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, retry.ErrAttemptsExhausted) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: version %s: %v", service.ErrDeploymentTimeout, label, err)
	}
	if errors.Is(err, service.ErrDeployment) {
		return err
	}
	return fmt.Errorf("%w: %v", service.ErrDeployment, err)
}
