package provisioning

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hostgrid-io/tenant-provisioner/domains/tenants/be/service"
	"github.com/hostgrid-io/tenant-provisioner/platform/go/archive"
)

// ArtifactFetcher downloads a referenced artifact and unpacks it into a
// fresh extraction directory under the run scratch dir.
type ArtifactFetcher struct {
	store  ObjectStore
	logger *zap.Logger
}

// NewArtifactFetcher constructs the fetch stage.
func NewArtifactFetcher(store ObjectStore, logger *zap.Logger) *ArtifactFetcher {
	if store == nil {
		panic("object store is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &ArtifactFetcher{store: store, logger: logger}
}

// Fetch downloads ref into runDir and extracts it next to the archive. The
// extraction directory must not already exist; merging into a stale tree is
// refused.
func (f *ArtifactFetcher) Fetch(ctx context.Context, ref service.ArtifactReference, runDir string) (service.WorkingTree, error) {
	archivePath := filepath.Join(runDir, filepath.Base(ref.ObjectKey))

	if err := f.store.Download(ctx, ref.ObjectKey, archivePath); err != nil {
		return service.WorkingTree{}, fmt.Errorf("%w: %v", service.ErrFetch, err)
	}

	extractionDir := strings.TrimSuffix(archivePath, filepath.Ext(archivePath))
	if err := archive.Extract(archivePath, extractionDir); err != nil {
		return service.WorkingTree{}, fmt.Errorf("%w: %v", service.ErrFetch, err)
	}

	f.logger.Info("artifact unpacked",
		zap.String("object_key", ref.ObjectKey),
		zap.String("extraction_dir", extractionDir),
	)

	return service.WorkingTree{RunDir: runDir, Root: extractionDir}, nil
}
