package awsx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// MetricsProvider answers utilization queries from CloudWatch. It satisfies
// the waste detector's UtilizationMetrics interface.
type MetricsProvider struct {
	client *cloudwatch.Client
}

func NewMetricsProvider(sess *Session) *MetricsProvider {
	return &MetricsProvider{client: cloudwatch.NewFromConfig(sess.Config)}
}

// AverageCPUPercent is the mean CPUUtilization over the window.
func (p *MetricsProvider) AverageCPUPercent(ctx context.Context, instanceID string, days int) (float64, error) {
	points, err := p.dailyStats(ctx, "AWS/EC2", "CPUUtilization",
		instanceDimension(instanceID), days, cwtypes.StatisticAverage)
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, fmt.Errorf("no CPU datapoints for %s", instanceID)
	}

	var sum float64
	for _, dp := range points {
		sum += aws.ToFloat64(dp.Average)
	}
	return sum / float64(len(points)), nil
}

// NetworkBytesPerDay sums NetworkIn and NetworkOut and averages per day.
func (p *MetricsProvider) NetworkBytesPerDay(ctx context.Context, instanceID string, days int) (float64, error) {
	var total float64
	for _, metric := range []string{"NetworkIn", "NetworkOut"} {
		points, err := p.dailyStats(ctx, "AWS/EC2", metric,
			instanceDimension(instanceID), days, cwtypes.StatisticSum)
		if err != nil {
			return 0, err
		}
		for _, dp := range points {
			total += aws.ToFloat64(dp.Sum)
		}
	}
	if days <= 0 {
		days = 1
	}
	return total / float64(days), nil
}

// DiskOpsPerDay sums read and write operations and averages per day.
func (p *MetricsProvider) DiskOpsPerDay(ctx context.Context, instanceID string, days int) (float64, error) {
	var total float64
	for _, metric := range []string{"DiskReadOps", "DiskWriteOps"} {
		points, err := p.dailyStats(ctx, "AWS/EC2", metric,
			instanceDimension(instanceID), days, cwtypes.StatisticSum)
		if err != nil {
			return 0, err
		}
		for _, dp := range points {
			total += aws.ToFloat64(dp.Sum)
		}
	}
	if days <= 0 {
		days = 1
	}
	return total / float64(days), nil
}

// LoadBalancerRequests is the total RequestCount over the window.
func (p *MetricsProvider) LoadBalancerRequests(ctx context.Context, lbARN string, days int) (float64, error) {
	dim := []cwtypes.Dimension{{
		Name:  aws.String("LoadBalancer"),
		Value: aws.String(lbDimensionValue(lbARN)),
	}}

	points, err := p.dailyStats(ctx, "AWS/ApplicationELB", "RequestCount", dim, days, cwtypes.StatisticSum)
	if err != nil {
		return 0, err
	}

	var total float64
	for _, dp := range points {
		total += aws.ToFloat64(dp.Sum)
	}
	return total, nil
}

func (p *MetricsProvider) dailyStats(ctx context.Context, namespace, metric string, dims []cwtypes.Dimension, days int, stat cwtypes.Statistic) ([]cwtypes.Datapoint, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	out, err := p.client.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(namespace),
		MetricName: aws.String(metric),
		Dimensions: dims,
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(86400),
		Statistics: []cwtypes.Statistic{stat},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s/%s: %w", namespace, metric, err)
	}
	return out.Datapoints, nil
}

func instanceDimension(instanceID string) []cwtypes.Dimension {
	return []cwtypes.Dimension{{
		Name:  aws.String("InstanceId"),
		Value: aws.String(instanceID),
	}}
}

// lbDimensionValue extracts the "app/name/id" suffix CloudWatch expects from
// a full load-balancer ARN.
func lbDimensionValue(arn string) string {
	const marker = ":loadbalancer/"
	if i := strings.Index(arn, marker); i >= 0 {
		return arn[i+len(marker):]
	}
	return arn
}
