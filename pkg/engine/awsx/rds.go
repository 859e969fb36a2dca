package awsx

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"

	"github.com/redflaghq/costwarden/pkg/engine/inventory"
)

// RDSProvider lists database instances.
type RDSProvider struct {
	client *rds.Client
	region string
}

func NewRDSProvider(sess *Session) *RDSProvider {
	return &RDSProvider{client: rds.NewFromConfig(sess.Config), region: sess.Region}
}

// DBInstances returns every RDS instance in the region.
func (p *RDSProvider) DBInstances(ctx context.Context) ([]inventory.DBInstance, error) {
	var out []inventory.DBInstance

	paginator := rds.NewDescribeDBInstancesPaginator(p.client, &rds.DescribeDBInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describing db instances: %w", err)
		}
		for _, db := range page.DBInstances {
			out = append(out, inventory.DBInstance{
				ID:                 aws.ToString(db.DBInstanceIdentifier),
				Engine:             aws.ToString(db.Engine),
				InstanceClass:      aws.ToString(db.DBInstanceClass),
				PubliclyAccessible: aws.ToBool(db.PubliclyAccessible),
				StorageEncrypted:   aws.ToBool(db.StorageEncrypted),
				Region:             p.region,
			})
		}
	}
	return out, nil
}
