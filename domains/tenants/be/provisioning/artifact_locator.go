package provisioning

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/hostgrid-io/tenant-provisioner/domains/tenants/be/service"
)

// ArchiveSuffix is the suffix every stored build artifact carries.
const ArchiveSuffix = ".zip"

// ArtifactLocator resolves which stored artifact backs the version that is
// currently live on the hosting platform.
type ArtifactLocator struct {
	store    ObjectStore
	platform DeployPlatform
	logger   *zap.Logger
}

// NewArtifactLocator constructs the locator stage.
func NewArtifactLocator(store ObjectStore, platform DeployPlatform, logger *zap.Logger) *ArtifactLocator {
	if store == nil || platform == nil {
		panic("object store and deploy platform are required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &ArtifactLocator{store: store, platform: platform, logger: logger}
}

// Locate queries the live version label, lists the full bucket, and returns
// the first key (in listing order) that contains the label and ends with
// the archive suffix. Listing order is store-defined, so uniqueness of the
// match is not guaranteed; first match wins. The complete key listing is
// written to indexPath as a transient side record.
func (l *ArtifactLocator) Locate(ctx context.Context, indexPath string) (service.ArtifactReference, error) {
	label, err := l.platform.LiveVersionLabel(ctx)
	if err != nil {
		return service.ArtifactReference{}, fmt.Errorf("%w: %v", service.ErrVersionResolution, err)
	}
	l.logger.Info("current live version", zap.String("version_label", label))

	keys, err := l.store.ListKeys(ctx)
	if err != nil {
		return service.ArtifactReference{}, fmt.Errorf("%w: %v", service.ErrVersionResolution, err)
	}

	if err := writeIndex(indexPath, keys); err != nil {
		// The index is an implementation convenience, not part of the
		// contract; resolution proceeds without it.
		l.logger.Warn("write object index", zap.String("path", indexPath), zap.Error(err))
	}

	for _, key := range keys {
		if strings.Contains(key, label) && strings.HasSuffix(key, ArchiveSuffix) {
			return service.ArtifactReference{ObjectKey: key, VersionLabel: label}, nil
		}
	}

	return service.ArtifactReference{}, fmt.Errorf("%w: no object matching version %q in bucket %s", service.ErrVersionResolution, label, l.store.Bucket())
}

func writeIndex(path string, keys []string) error {
	if path == "" {
		return nil
	}
	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(key)
		sb.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}
