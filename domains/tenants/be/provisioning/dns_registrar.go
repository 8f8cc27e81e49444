package provisioning

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hostgrid-io/tenant-provisioner/domains/tenants/be/service"
)

// recordTTL is the TTL on every tenant CNAME.
const recordTTL int64 = 300

// DNSRegistrar points the tenant subdomain at the shared hosting endpoint.
type DNSRegistrar struct {
	dns    DNSChanger
	target string
	logger *zap.Logger
}

// NewDNSRegistrar constructs the DNS stage. target is the shared hosting
// endpoint every tenant CNAME resolves to.
func NewDNSRegistrar(changer DNSChanger, target string, logger *zap.Logger) *DNSRegistrar {
	if changer == nil {
		panic("dns changer is required")
	}
	if target == "" {
		panic("dns target is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &DNSRegistrar{dns: changer, target: target, logger: logger}
}

// RegisterSubdomain submits a single CREATE for fqdn -> target. CREATE
// semantics are intentional: re-running for an existing tenant fails
// instead of overwriting the record, so retries are unsafe without
// checking prior state.
func (r *DNSRegistrar) RegisterSubdomain(ctx context.Context, fqdn string) (service.DNSRecord, error) {
	record, err := r.dns.CreateCNAME(ctx, fqdn, r.target, recordTTL)
	if err != nil {
		return service.DNSRecord{}, fmt.Errorf("%w: %v", service.ErrDNS, err)
	}

	r.logger.Info("cname created", zap.String("name", record.Name), zap.String("target", record.Target))

	return service.DNSRecord{
		Name:   record.Name,
		Type:   record.Type,
		TTL:    record.TTL,
		Target: record.Target,
	}, nil
}
