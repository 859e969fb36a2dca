package awsx

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"

	"github.com/redflaghq/costwarden/pkg/costs"
)

// CostProvider reads spend data from Cost Explorer.
type CostProvider struct {
	client *costexplorer.Client
}

func NewCostProvider(sess *Session) *CostProvider {
	return &CostProvider{client: costexplorer.NewFromConfig(sess.Config)}
}

const dateLayout = "2006-01-02"

// WeeklySummaries fetches the last `weeks` full weeks of per-service spend,
// oldest first. Each summary's previous-week figures come from the week
// before it, so the first returned week has zero previous totals.
//
// Cost Explorer has no weekly granularity; daily data is bucketed into
// 7-day windows ending today.
func (p *CostProvider) WeeklySummaries(ctx context.Context, weeks int) ([]costs.Summary, error) {
	if weeks <= 0 {
		weeks = 1
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -7*weeks)

	out, err := p.fetchDaily(ctx, start, end)
	if err != nil {
		return nil, err
	}

	type weekData struct {
		total    float64
		services map[string]float64
	}
	buckets := make([]weekData, weeks)
	for i := range buckets {
		buckets[i].services = make(map[string]float64)
	}

	for _, period := range out {
		day, err := time.Parse(dateLayout, aws.ToString(period.TimePeriod.Start))
		if err != nil {
			continue
		}
		idx := int(day.Sub(start).Hours() / 24 / 7)
		if idx < 0 || idx >= weeks {
			continue
		}
		for _, group := range period.Groups {
			if len(group.Keys) == 0 {
				continue
			}
			amount := metricAmount(group.Metrics)
			buckets[idx].total += amount
			buckets[idx].services[group.Keys[0]] += amount
		}
	}

	summaries := make([]costs.Summary, weeks)
	prevTotal := 0.0
	prevServices := map[string]float64{}
	for i, bucket := range buckets {
		weekStart := start.AddDate(0, 0, 7*i)
		weekEnd := weekStart.AddDate(0, 0, 7)

		var services []costs.Breakdown
		for name, amount := range bucket.services {
			services = append(services, costs.Breakdown{
				ServiceName:  name,
				CurrentCost:  amount,
				PreviousCost: prevServices[name],
			})
		}

		summaries[i] = costs.NewSummary(bucket.total, prevTotal, services, weekStart, weekEnd)
		prevTotal = bucket.total
		prevServices = bucket.services
	}
	return summaries, nil
}

func (p *CostProvider) fetchDaily(ctx context.Context, start, end time.Time) ([]cetypes.ResultByTime, error) {
	var results []cetypes.ResultByTime

	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: aws.String(start.Format(dateLayout)),
			End:   aws.String(end.Format(dateLayout)),
		},
		Granularity: cetypes.GranularityDaily,
		Metrics:     []string{"UnblendedCost"},
		GroupBy: []cetypes.GroupDefinition{{
			Type: cetypes.GroupDefinitionTypeDimension,
			Key:  aws.String("SERVICE"),
		}},
	}

	for {
		out, err := p.client.GetCostAndUsage(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("fetching cost and usage: %w", err)
		}
		results = append(results, out.ResultsByTime...)
		if out.NextPageToken == nil {
			break
		}
		input.NextPageToken = out.NextPageToken
	}
	return results, nil
}

func metricAmount(metrics map[string]cetypes.MetricValue) float64 {
	mv, ok := metrics["UnblendedCost"]
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(aws.ToString(mv.Amount), 64)
	if err != nil {
		return 0
	}
	return v
}
