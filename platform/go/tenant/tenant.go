// Package tenant holds customer identifier validation and the name
// derivations shared by the provisioning stages (subdomain, database name,
// vhost file name).
package tenant

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidCustomerID marks a customer identifier that failed validation.
// The identifier feeds DNS labels, database DDL, and rendered vhost config,
// so nothing with side effects may run before this check passes.
var ErrInvalidCustomerID = errors.New("invalid customer id")

// customerPattern is the intersection of a DNS subdomain label and a
// database identifier token: leading letter, then lowercase alphanumerics
// or underscore, at most 63 characters total.
var customerPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// NormalizeCustomerID trims whitespace, lowercases the value, and ensures it
// matches the canonical customer identifier pattern.
func NormalizeCustomerID(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", fmt.Errorf("%w: customer id is required", ErrInvalidCustomerID)
	}

	normalized := strings.ToLower(trimmed)
	if !customerPattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: %q must match %s", ErrInvalidCustomerID, input, customerPattern.String())
	}

	return normalized, nil
}

// FQDN returns `<customer>.<domain>`, the tenant's public hostname.
func FQDN(customer, domain string) string {
	return customer + "." + strings.TrimSuffix(domain, ".")
}

// DatabaseName returns the database schema name owned by the tenant.
// It is the customer id itself; callers must have normalized it first.
func DatabaseName(customer string) string {
	return customer
}

// DocumentRoot returns the per-tenant document root served by the shared
// web tier.
func DocumentRoot(customer string) string {
	return "/var/www/clients/" + customer
}

// VhostFileName returns the config fragment file name dropped into the
// artifact's vhosts directory.
func VhostFileName(customer string) string {
	return customer + ".conf"
}
