package awsx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"

	"github.com/redflaghq/costwarden/pkg/engine/inventory"
)

// EventsProvider pulls deployment health events from a CloudWatch Logs group.
type EventsProvider struct {
	client   *cloudwatchlogs.Client
	logGroup string
}

// NewEventsProvider reads from the given log group, typically the deployment
// controller's.
func NewEventsProvider(sess *Session, logGroup string) *EventsProvider {
	return &EventsProvider{client: cloudwatchlogs.NewFromConfig(sess.Config), logGroup: logGroup}
}

// patterns maps a log filter pattern to the event kind it signals.
var patterns = map[string]inventory.EventKind{
	"health check failed": inventory.EventHealthCheckFailure,
	"rolling back":        inventory.EventRollback,
	"CrashLoopBackOff":    inventory.EventCrashLoop,
}

// DeploymentEvents scans the log group over the lookback window and maps
// matching lines to typed events.
func (p *EventsProvider) DeploymentEvents(ctx context.Context, deploymentID string, lookbackDays int) ([]inventory.DeploymentEvent, error) {
	if p.logGroup == "" {
		return nil, nil
	}

	start := time.Now().AddDate(0, 0, -lookbackDays).UnixMilli()

	var events []inventory.DeploymentEvent
	for pattern, kind := range patterns {
		filter := pattern
		if deploymentID != "" {
			filter = fmt.Sprintf("%q %q", deploymentID, pattern)
		}

		paginator := cloudwatchlogs.NewFilterLogEventsPaginator(p.client, &cloudwatchlogs.FilterLogEventsInput{
			LogGroupName:  aws.String(p.logGroup),
			FilterPattern: aws.String(filter),
			StartTime:     aws.Int64(start),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("filtering log group %s: %w", p.logGroup, err)
			}
			for _, ev := range page.Events {
				events = append(events, inventory.DeploymentEvent{
					DeploymentID: deploymentID,
					Kind:         kind,
					Message:      strings.TrimSpace(aws.ToString(ev.Message)),
					Timestamp:    time.UnixMilli(aws.ToInt64(ev.Timestamp)),
				})
			}
		}
	}
	return events, nil
}
