package service

import (
	"context"
	"os"
)

// ArtifactReference identifies exactly one stored build artifact. ObjectKey
// contains VersionLabel as a substring and ends with the archive suffix.
type ArtifactReference struct {
	ObjectKey    string
	VersionLabel string
}

// WorkingTree is the unpacked artifact owned by a single pipeline run.
// Root is the extraction directory; RunDir is the scratch directory holding
// Root plus the downloaded archive, the object-key index file, and the
// repackaged bundle. Cleanup removes all of it.
type WorkingTree struct {
	RunDir string
	Root   string
}

// Cleanup deletes every transient file created by the run.
func (t WorkingTree) Cleanup() error {
	if t.RunDir == "" {
		return nil
	}
	return os.RemoveAll(t.RunDir)
}

// DeploymentVersion describes the application version created by a run.
type DeploymentVersion struct {
	Label     string
	BundleKey string
}

// DNSRecord describes the record created for the tenant subdomain.
type DNSRecord struct {
	Name   string
	Type   string
	TTL    int64
	Target string
}

// ArtifactLocator resolves the artifact backing the currently live
// deployment. indexPath names a transient file under the run scratch dir
// where the full object-key listing is written as a side record.
type ArtifactLocator interface {
	Locate(ctx context.Context, indexPath string) (ArtifactReference, error)
}

// ArtifactFetcher downloads the referenced artifact into runDir and unpacks
// it into a fresh extraction directory.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, ref ArtifactReference, runDir string) (WorkingTree, error)
}

// VhostWriter injects the tenant virtual-host fragment into the tree.
type VhostWriter interface {
	Write(ctx context.Context, tree WorkingTree, customer string) error
}

// DatabaseProvisioner creates the tenant database schema and grants. Errors
// are reported to the orchestrator, which treats them as non-fatal.
type DatabaseProvisioner interface {
	Provision(ctx context.Context, name string) error
}

// DeploymentPublisher repackages the tree, uploads it, registers it as a
// new version, waits for processing, and activates it.
type DeploymentPublisher interface {
	Publish(ctx context.Context, tree WorkingTree) (DeploymentVersion, error)
}

// DNSRegistrar creates the CNAME pointing the tenant subdomain at the
// shared hosting endpoint.
type DNSRegistrar interface {
	RegisterSubdomain(ctx context.Context, fqdn string) (DNSRecord, error)
}

// Stages bundles the pipeline dependencies handed to the orchestrator.
type Stages struct {
	Locator   ArtifactLocator
	Fetcher   ArtifactFetcher
	Vhost     VhostWriter
	Database  DatabaseProvisioner
	Publisher DeploymentPublisher
	DNS       DNSRegistrar
}
