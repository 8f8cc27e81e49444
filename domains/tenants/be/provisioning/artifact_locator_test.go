package provisioning

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hostgrid-io/tenant-provisioner/domains/tenants/be/service"
)

func TestArtifactLocator_FirstMatchInListingOrder(t *testing.T) {
	store := newFakeStore("artifacts")
	store.keys = []string{"v1.zip", "v2.zip", "v3.zip"}
	platform := &fakePlatform{liveLabel: "v2"}

	locator := NewArtifactLocator(store, platform, zap.NewNop())
	indexPath := filepath.Join(t.TempDir(), "object_list.txt")

	ref, err := locator.Locate(context.Background(), indexPath)
	require.NoError(t, err)
	require.Equal(t, service.ArtifactReference{ObjectKey: "v2.zip", VersionLabel: "v2"}, ref)

	index, err := os.ReadFile(indexPath)
	require.NoError(t, err)
	require.Equal(t, "v1.zip\nv2.zip\nv3.zip\n", string(index))
}

func TestArtifactLocator_IgnoresNonArchiveKeys(t *testing.T) {
	store := newFakeStore("artifacts")
	store.keys = []string{"app-v7.tar.gz", "logs/app-v7.txt", "builds/app-v7.zip"}
	platform := &fakePlatform{liveLabel: "app-v7"}

	locator := NewArtifactLocator(store, platform, zap.NewNop())

	ref, err := locator.Locate(context.Background(), filepath.Join(t.TempDir(), "idx"))
	require.NoError(t, err)
	require.Equal(t, "builds/app-v7.zip", ref.ObjectKey)
}

func TestArtifactLocator_NoMatch(t *testing.T) {
	store := newFakeStore("artifacts")
	store.keys = []string{"v1.zip", "v3.zip"}
	platform := &fakePlatform{liveLabel: "v2"}

	locator := NewArtifactLocator(store, platform, zap.NewNop())

	_, err := locator.Locate(context.Background(), filepath.Join(t.TempDir(), "idx"))
	require.ErrorIs(t, err, service.ErrVersionResolution)
}

func TestArtifactLocator_PlatformError(t *testing.T) {
	store := newFakeStore("artifacts")
	platform := &fakePlatform{liveErr: errors.New("no instances")}

	locator := NewArtifactLocator(store, platform, zap.NewNop())

	_, err := locator.Locate(context.Background(), filepath.Join(t.TempDir(), "idx"))
	require.ErrorIs(t, err, service.ErrVersionResolution)
}

func TestArtifactLocator_ListError(t *testing.T) {
	store := newFakeStore("artifacts")
	store.listErr = errors.New("access denied")
	platform := &fakePlatform{liveLabel: "v2"}

	locator := NewArtifactLocator(store, platform, zap.NewNop())

	_, err := locator.Locate(context.Background(), filepath.Join(t.TempDir(), "idx"))
	require.ErrorIs(t, err, service.ErrVersionResolution)
}
