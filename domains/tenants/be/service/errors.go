package service

import "errors"

// Stage-fatal errors surfaced by the pipeline. Each provisioning stage wraps
// its failures with the matching sentinel so the invocation boundary can map
// them to a response without string matching. Database provisioning is the
// one stage whose failure is not fatal; see Service.Provision.
var (
	ErrVersionResolution = errors.New("version resolution failed")
	ErrFetch             = errors.New("artifact fetch failed")
	ErrConfigWrite       = errors.New("vhost config write failed")
	ErrDeployment        = errors.New("deployment failed")
	ErrDeploymentTimeout = errors.New("deployment processing timed out")
	ErrDNS               = errors.New("dns record creation failed")
)
