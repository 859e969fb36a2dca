package awsx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/redflaghq/costwarden/pkg/engine/inventory"
)

// S3Provider lists buckets with their encryption and public-access posture.
type S3Provider struct {
	client *s3.Client
	region string
	logger *slog.Logger
}

func NewS3Provider(sess *Session) *S3Provider {
	return &S3Provider{
		client: s3.NewFromConfig(sess.Config),
		region: sess.Region,
		logger: slog.Default(),
	}
}

// Buckets returns every bucket the caller owns. Per-bucket config calls that
// fail with access errors mark the posture as unknown-insecure rather than
// dropping the bucket.
func (p *S3Provider) Buckets(ctx context.Context) ([]inventory.Bucket, error) {
	listed, err := p.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("listing buckets: %w", err)
	}

	var out []inventory.Bucket
	for _, b := range listed.Buckets {
		name := aws.ToString(b.Name)
		out = append(out, inventory.Bucket{
			Name:                name,
			Encrypted:           p.bucketEncrypted(ctx, name),
			PublicAccessBlocked: p.publicAccessBlocked(ctx, name),
			Region:              p.region,
		})
	}
	return out, nil
}

func (p *S3Provider) bucketEncrypted(ctx context.Context, name string) bool {
	enc, err := p.client.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		// The API reports "no default encryption" as an error code, not an
		// empty configuration. Anything else is an access problem; treat the
		// posture as insecure so the finding surfaces for review.
		var apiErr smithy.APIError
		if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "ServerSideEncryptionConfigurationNotFoundError" {
			p.logger.Warn("Bucket encryption lookup failed", "bucket", name, "error", err)
		}
		return false
	}
	return enc.ServerSideEncryptionConfiguration != nil &&
		len(enc.ServerSideEncryptionConfiguration.Rules) > 0
}

func (p *S3Provider) publicAccessBlocked(ctx context.Context, name string) bool {
	pab, err := p.client.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{
		Bucket: aws.String(name),
	})
	if err != nil || pab.PublicAccessBlockConfiguration == nil {
		return false
	}
	c := pab.PublicAccessBlockConfiguration
	return aws.ToBool(c.BlockPublicAcls) && aws.ToBool(c.IgnorePublicAcls) &&
		aws.ToBool(c.BlockPublicPolicy) && aws.ToBool(c.RestrictPublicBuckets)
}
