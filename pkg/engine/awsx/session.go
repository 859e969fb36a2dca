// Package awsx implements the AWS-backed providers: resource inventory,
// utilization metrics, cost data, deployment events.
package awsx

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Session carries the resolved AWS configuration and caller identity.
type Session struct {
	Config    aws.Config
	Region    string
	AccountID string
}

// NewSession loads the default credential chain and verifies it with an STS
// identity call, so a misconfigured environment fails at startup rather than
// mid-run.
func NewSession(ctx context.Context, region string) (*Session, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	ident, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("verifying AWS credentials: %w", err)
	}

	return &Session{
		Config:    cfg,
		Region:    cfg.Region,
		AccountID: aws.ToString(ident.Account),
	}, nil
}
