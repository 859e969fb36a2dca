package awsx

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/redflaghq/costwarden/pkg/engine/inventory"
)

// EC2Provider lists instances, volumes, and security-group ingress rules.
type EC2Provider struct {
	client *ec2.Client
	region string
}

// NewEC2Provider builds the provider from a session.
func NewEC2Provider(sess *Session) *EC2Provider {
	return &EC2Provider{client: ec2.NewFromConfig(sess.Config), region: sess.Region}
}

// Instances returns every non-terminated instance in the region.
func (p *EC2Provider) Instances(ctx context.Context) ([]inventory.Instance, error) {
	var out []inventory.Instance

	paginator := ec2.NewDescribeInstancesPaginator(p.client, &ec2.DescribeInstancesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describing instances: %w", err)
		}
		for _, res := range page.Reservations {
			for _, inst := range res.Instances {
				if inst.State != nil && inst.State.Name == ec2types.InstanceStateNameTerminated {
					continue
				}
				out = append(out, toInstance(inst, p.region))
			}
		}
	}
	return out, nil
}

func toInstance(inst ec2types.Instance, region string) inventory.Instance {
	tags := make(map[string]string, len(inst.Tags))
	for _, t := range inst.Tags {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	state := ""
	if inst.State != nil {
		state = string(inst.State.Name)
	}
	i := inventory.Instance{
		ID:           aws.ToString(inst.InstanceId),
		InstanceType: string(inst.InstanceType),
		State:        state,
		Region:       region,
		Tags:         tags,
	}
	if inst.LaunchTime != nil {
		i.LaunchTime = *inst.LaunchTime
	}
	return i
}

// Volumes returns every EBS volume in the region. Attachment state comes
// through as-is; "available" means unattached.
func (p *EC2Provider) Volumes(ctx context.Context) ([]inventory.Volume, error) {
	var out []inventory.Volume

	paginator := ec2.NewDescribeVolumesPaginator(p.client, &ec2.DescribeVolumesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describing volumes: %w", err)
		}
		for _, vol := range page.Volumes {
			v := inventory.Volume{
				ID:         aws.ToString(vol.VolumeId),
				VolumeType: string(vol.VolumeType),
				SizeGB:     int(aws.ToInt32(vol.Size)),
				State:      string(vol.State),
				Encrypted:  aws.ToBool(vol.Encrypted),
				Region:     p.region,
			}
			if len(vol.Attachments) > 0 {
				v.AttachedInstanceID = aws.ToString(vol.Attachments[0].InstanceId)
			}
			out = append(out, v)
		}
	}
	return out, nil
}

// IngressRules flattens every security group's ingress permissions to one
// rule per port-range/CIDR pair.
func (p *EC2Provider) IngressRules(ctx context.Context) ([]inventory.IngressRule, error) {
	var out []inventory.IngressRule

	paginator := ec2.NewDescribeSecurityGroupsPaginator(p.client, &ec2.DescribeSecurityGroupsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describing security groups: %w", err)
		}
		for _, sg := range page.SecurityGroups {
			out = append(out, flattenGroup(sg, p.region)...)
		}
	}
	return out, nil
}

func flattenGroup(sg ec2types.SecurityGroup, region string) []inventory.IngressRule {
	var rules []inventory.IngressRule
	for _, perm := range sg.IpPermissions {
		from := int(aws.ToInt32(perm.FromPort))
		to := int(aws.ToInt32(perm.ToPort))
		proto := aws.ToString(perm.IpProtocol)
		// Protocol -1 means all traffic on all ports.
		if proto == "-1" {
			from, to = 0, 65535
		}

		base := inventory.IngressRule{
			GroupID:   aws.ToString(sg.GroupId),
			GroupName: aws.ToString(sg.GroupName),
			Protocol:  proto,
			FromPort:  from,
			ToPort:    to,
			Region:    region,
		}
		for _, r := range perm.IpRanges {
			rule := base
			rule.CIDR = aws.ToString(r.CidrIp)
			rules = append(rules, rule)
		}
		for _, r := range perm.Ipv6Ranges {
			rule := base
			rule.CIDR = aws.ToString(r.CidrIpv6)
			rules = append(rules, rule)
		}
	}
	return rules
}
