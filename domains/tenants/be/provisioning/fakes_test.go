package provisioning

import (
	"context"
	"fmt"
	"os"

	"github.com/hostgrid-io/tenant-provisioner/platform/go/deploy"
	"github.com/hostgrid-io/tenant-provisioner/platform/go/dns"
)

// fakeStore is an in-memory ObjectStore.
type fakeStore struct {
	bucket      string
	keys        []string
	listErr     error
	objects     map[string][]byte
	downloadErr error
	uploads     map[string][]byte
	uploadErr   error
}

func newFakeStore(bucket string) *fakeStore {
	return &fakeStore{
		bucket:  bucket,
		objects: make(map[string][]byte),
		uploads: make(map[string][]byte),
	}
}

func (f *fakeStore) Bucket() string { return f.bucket }

func (f *fakeStore) ListKeys(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.keys, nil
}

func (f *fakeStore) Download(ctx context.Context, key, destPath string) error {
	if f.downloadErr != nil {
		return f.downloadErr
	}
	data, ok := f.objects[key]
	if !ok {
		return fmt.Errorf("object %s not found", key)
	}
	return os.WriteFile(destPath, data, 0o644)
}

func (f *fakeStore) Upload(ctx context.Context, key, srcPath string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	f.uploads[key] = data
	return nil
}

// fakePlatform is an in-memory DeployPlatform. statuses is consumed one
// entry per VersionStatus call; the last entry repeats.
type fakePlatform struct {
	liveLabel   string
	liveErr     error
	registered  []string
	registerErr error
	statuses    []deploy.VersionStatus
	statusErr   error
	statusCalls int
	activated   []string
	activateErr error
}

func (f *fakePlatform) LiveVersionLabel(ctx context.Context) (string, error) {
	if f.liveErr != nil {
		return "", f.liveErr
	}
	return f.liveLabel, nil
}

func (f *fakePlatform) RegisterVersion(ctx context.Context, label, bundleBucket, bundleKey string) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered = append(f.registered, label)
	return nil
}

func (f *fakePlatform) VersionStatus(ctx context.Context, label string) (deploy.VersionStatus, error) {
	if f.statusErr != nil {
		return "", f.statusErr
	}
	idx := f.statusCalls
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	f.statusCalls++
	return f.statuses[idx], nil
}

func (f *fakePlatform) ActivateVersion(ctx context.Context, label string) error {
	if f.activateErr != nil {
		return f.activateErr
	}
	f.activated = append(f.activated, label)
	return nil
}

// fakeDNS records CNAME creations.
type fakeDNS struct {
	created []dns.Record
	err     error
}

func (f *fakeDNS) CreateCNAME(ctx context.Context, name, target string, ttl int64) (dns.Record, error) {
	if f.err != nil {
		return dns.Record{}, f.err
	}
	rec := dns.Record{Name: name, Type: "CNAME", TTL: ttl, Target: target}
	f.created = append(f.created, rec)
	return rec, nil
}
