// Package dns wraps the Route 53 record change API used to point tenant
// subdomains at the shared hosting endpoint.
package dns

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/aws/smithy-go"
)

// Record describes a created DNS record.
type Record struct {
	Name   string
	Type   string
	TTL    int64
	Target string
}

// Client wraps Route 53 for a single hosted zone.
type Client struct {
	r53    *route53.Client
	zoneID string
}

// NewClient builds a Route 53 client from the default AWS credential chain.
func NewClient(ctx context.Context, region, zoneID string) (*Client, error) {
	if zoneID == "" {
		return nil, fmt.Errorf("hosted zone id is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Client{r53: route53.NewFromConfig(awsCfg), zoneID: zoneID}, nil
}

// CreateCNAME submits a single CREATE change for name -> target with the
// given TTL. CREATE (not UPSERT) is deliberate: an existing record for the
// same name makes the change fail instead of being silently overwritten.
func (c *Client) CreateCNAME(ctx context.Context, name, target string, ttl int64) (Record, error) {
	_, err := c.r53.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(c.zoneID),
		ChangeBatch: &types.ChangeBatch{
			Changes: []types.Change{
				{
					Action: types.ChangeActionCreate,
					ResourceRecordSet: &types.ResourceRecordSet{
						Name:            aws.String(name),
						Type:            types.RRTypeCname,
						TTL:             aws.Int64(ttl),
						ResourceRecords: []types.ResourceRecord{{Value: aws.String(target)}},
					},
				},
			},
		},
	})
	if err != nil {
		if IsRecordConflict(err) {
			return Record{}, fmt.Errorf("record %s already exists in zone %s: %w", name, c.zoneID, err)
		}
		return Record{}, fmt.Errorf("create record %s in zone %s: %w", name, c.zoneID, err)
	}

	return Record{Name: name, Type: "CNAME", TTL: ttl, Target: target}, nil
}

// IsRecordConflict reports whether the error is Route 53 rejecting a CREATE
// because the record set already exists.
func IsRecordConflict(err error) bool {
	if err == nil {
		return false
	}

	var icb *types.InvalidChangeBatch
	if errors.As(err, &icb) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "InvalidChangeBatch"
	}

	return false
}
