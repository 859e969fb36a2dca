// Package pricing resolves monthly resource prices, from a static table or
// the AWS Pricing API.
package pricing

import "context"

// Source answers monthly price lookups. The boolean is false when the source
// has no figure for the resource; callers then omit the cost estimate rather
// than guessing.
type Source interface {
	InstanceMonthly(ctx context.Context, region, instanceType string) (float64, bool)
	VolumeGBMonthly(ctx context.Context, region, volumeType string) (float64, bool)
	LoadBalancerMonthly(ctx context.Context, region string) (float64, bool)
}

// Table is a static price list, used as the offline fallback. Figures are
// us-east-1 on-demand Linux prices.
type Table struct {
	InstanceMonthlyUSD map[string]float64 `mapstructure:"instance_monthly_usd" json:"instance_monthly_usd"`
	VolumeGBMonthlyUSD map[string]float64 `mapstructure:"volume_gb_monthly_usd" json:"volume_gb_monthly_usd"`
	LoadBalancerUSD    float64            `mapstructure:"load_balancer_usd" json:"load_balancer_usd"`
}

// DefaultTable returns the built-in price list.
func DefaultTable() *Table {
	return &Table{
		InstanceMonthlyUSD: map[string]float64{
			"t2.micro":  8.47,
			"t3.micro":  7.59,
			"t3.small":  15.18,
			"t3.medium": 30.37,
			"m5.large":  70.08,
			"m5.xlarge": 140.16,
			"c5.large":  62.05,
			"r5.large":  91.98,
		},
		VolumeGBMonthlyUSD: map[string]float64{
			"gp2": 0.10,
			"gp3": 0.08,
			"io1": 0.125,
			"st1": 0.045,
			"sc1": 0.015,
		},
		LoadBalancerUSD: 16.43,
	}
}

func (t *Table) InstanceMonthly(ctx context.Context, region, instanceType string) (float64, bool) {
	v, ok := t.InstanceMonthlyUSD[instanceType]
	return v, ok
}

func (t *Table) VolumeGBMonthly(ctx context.Context, region, volumeType string) (float64, bool) {
	v, ok := t.VolumeGBMonthlyUSD[volumeType]
	return v, ok
}

func (t *Table) LoadBalancerMonthly(ctx context.Context, region string) (float64, bool) {
	if t.LoadBalancerUSD <= 0 {
		return 0, false
	}
	return t.LoadBalancerUSD, true
}

// Layered chains sources; the first one that answers wins.
type Layered []Source

func (l Layered) InstanceMonthly(ctx context.Context, region, instanceType string) (float64, bool) {
	for _, src := range l {
		if v, ok := src.InstanceMonthly(ctx, region, instanceType); ok {
			return v, ok
		}
	}
	return 0, false
}

func (l Layered) VolumeGBMonthly(ctx context.Context, region, volumeType string) (float64, bool) {
	for _, src := range l {
		if v, ok := src.VolumeGBMonthly(ctx, region, volumeType); ok {
			return v, ok
		}
	}
	return 0, false
}

func (l Layered) LoadBalancerMonthly(ctx context.Context, region string) (float64, bool) {
	for _, src := range l {
		if v, ok := src.LoadBalancerMonthly(ctx, region); ok {
			return v, ok
		}
	}
	return 0, false
}
