// Package provisioning implements the pipeline stages against the artifact
// store, the deployment platform, the shared database server, and DNS.
package provisioning

import (
	"context"

	"github.com/hostgrid-io/tenant-provisioner/platform/go/deploy"
	"github.com/hostgrid-io/tenant-provisioner/platform/go/dns"
	"github.com/hostgrid-io/tenant-provisioner/platform/go/storage"
)

// ObjectStore is the artifact store capability the stages consume.
type ObjectStore interface {
	Bucket() string
	ListKeys(ctx context.Context) ([]string, error)
	Download(ctx context.Context, key, destPath string) error
	Upload(ctx context.Context, key, srcPath string) error
}

// DeployPlatform is the hosting platform capability the stages consume.
type DeployPlatform interface {
	LiveVersionLabel(ctx context.Context) (string, error)
	RegisterVersion(ctx context.Context, label, bundleBucket, bundleKey string) error
	VersionStatus(ctx context.Context, label string) (deploy.VersionStatus, error)
	ActivateVersion(ctx context.Context, label string) error
}

// DNSChanger submits record changes against the hosted zone.
type DNSChanger interface {
	CreateCNAME(ctx context.Context, name, target string, ttl int64) (dns.Record, error)
}

var (
	_ ObjectStore    = (*storage.Client)(nil)
	_ DeployPlatform = (*deploy.Client)(nil)
	_ DNSChanger     = (*dns.Client)(nil)
)
