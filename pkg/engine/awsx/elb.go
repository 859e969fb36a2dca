package awsx

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"

	"github.com/redflaghq/costwarden/pkg/engine/inventory"
)

// ELBProvider lists ELBv2 load balancers.
type ELBProvider struct {
	client *elbv2.Client
	region string
}

func NewELBProvider(sess *Session) *ELBProvider {
	return &ELBProvider{client: elbv2.NewFromConfig(sess.Config), region: sess.Region}
}

// LoadBalancers returns every ALB and NLB in the region.
func (p *ELBProvider) LoadBalancers(ctx context.Context) ([]inventory.LoadBalancer, error) {
	var out []inventory.LoadBalancer

	paginator := elbv2.NewDescribeLoadBalancersPaginator(p.client, &elbv2.DescribeLoadBalancersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describing load balancers: %w", err)
		}
		for _, lb := range page.LoadBalancers {
			out = append(out, inventory.LoadBalancer{
				ARN:    aws.ToString(lb.LoadBalancerArn),
				Name:   aws.ToString(lb.LoadBalancerName),
				Type:   string(lb.Type),
				Region: p.region,
			})
		}
	}
	return out, nil
}
