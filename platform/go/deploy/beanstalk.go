// Package deploy wraps the Elastic Beanstalk API surface consumed by the
// provisioning pipeline: live-version lookup, version registration, status
// queries, and environment activation.
package deploy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk"
	"github.com/aws/aws-sdk-go-v2/service/elasticbeanstalk/types"
)

// VersionStatus is the processing state of a registered application version.
type VersionStatus string

const (
	StatusPending   VersionStatus = "pending"
	StatusProcessed VersionStatus = "processed"
	StatusFailed    VersionStatus = "failed"
)

// Config identifies the Beanstalk application and environment the pipeline
// deploys to.
type Config struct {
	Region          string
	ApplicationName string
	EnvironmentID   string
	EnvironmentName string
}

// Client wraps the Beanstalk API for one application/environment pair.
type Client struct {
	eb  *elasticbeanstalk.Client
	cfg Config
}

// NewClient builds a Beanstalk client from the default AWS credential chain.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ApplicationName == "" || cfg.EnvironmentID == "" || cfg.EnvironmentName == "" {
		return nil, fmt.Errorf("application name, environment id and environment name are required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Client{eb: elasticbeanstalk.NewFromConfig(awsCfg), cfg: cfg}, nil
}

// LiveVersionLabel returns the version label currently deployed on the
// configured environment, derived from instance deployment health.
func (c *Client) LiveVersionLabel(ctx context.Context) (string, error) {
	out, err := c.eb.DescribeInstancesHealth(ctx, &elasticbeanstalk.DescribeInstancesHealthInput{
		EnvironmentName: aws.String(c.cfg.EnvironmentName),
		AttributeNames:  []types.InstancesHealthAttribute{types.InstancesHealthAttributeDeployment},
	})
	if err != nil {
		return "", fmt.Errorf("describe instances health for %s: %w", c.cfg.EnvironmentName, err)
	}

	for _, instance := range out.InstanceHealthList {
		if instance.Deployment != nil && instance.Deployment.VersionLabel != nil && *instance.Deployment.VersionLabel != "" {
			return *instance.Deployment.VersionLabel, nil
		}
	}

	return "", fmt.Errorf("no deployed version reported for environment %s", c.cfg.EnvironmentName)
}

// RegisterVersion registers an uploaded bundle as a new application version.
// The parent application must already exist; registration never creates it.
func (c *Client) RegisterVersion(ctx context.Context, label, bundleBucket, bundleKey string) error {
	_, err := c.eb.CreateApplicationVersion(ctx, &elasticbeanstalk.CreateApplicationVersionInput{
		ApplicationName: aws.String(c.cfg.ApplicationName),
		VersionLabel:    aws.String(label),
		SourceBundle: &types.S3Location{
			S3Bucket: aws.String(bundleBucket),
			S3Key:    aws.String(bundleKey),
		},
		AutoCreateApplication: aws.Bool(false),
		Process:               aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("create application version %s: %w", label, err)
	}
	return nil
}

// VersionStatus reports the processing state of a registered version.
func (c *Client) VersionStatus(ctx context.Context, label string) (VersionStatus, error) {
	out, err := c.eb.DescribeApplicationVersions(ctx, &elasticbeanstalk.DescribeApplicationVersionsInput{
		ApplicationName: aws.String(c.cfg.ApplicationName),
		VersionLabels:   []string{label},
	})
	if err != nil {
		return "", fmt.Errorf("describe application version %s: %w", label, err)
	}
	if len(out.ApplicationVersions) == 0 {
		return "", fmt.Errorf("application version %s not found", label)
	}

	switch out.ApplicationVersions[0].Status {
	case types.ApplicationVersionStatusProcessed:
		return StatusProcessed, nil
	case types.ApplicationVersionStatusFailed:
		return StatusFailed, nil
	default:
		return StatusPending, nil
	}
}

// ActivateVersion switches the configured environment to the given version.
// The call returns once the update is accepted; environment convergence is
// not awaited.
func (c *Client) ActivateVersion(ctx context.Context, label string) error {
	_, err := c.eb.UpdateEnvironment(ctx, &elasticbeanstalk.UpdateEnvironmentInput{
		ApplicationName: aws.String(c.cfg.ApplicationName),
		EnvironmentId:   aws.String(c.cfg.EnvironmentID),
		VersionLabel:    aws.String(label),
	})
	if err != nil {
		return fmt.Errorf("update environment %s to version %s: %w", c.cfg.EnvironmentID, label, err)
	}
	return nil
}
