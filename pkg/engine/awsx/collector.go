package awsx

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/redflaghq/costwarden/pkg/engine/inventory"
)

// Collector assembles the full resource inventory by fanning out over the
// per-service providers. A provider failure degrades its slice of the
// inventory to empty; the others still land.
type Collector struct {
	EC2    *EC2Provider
	RDS    *RDSProvider
	S3     *S3Provider
	ELB    *ELBProvider
	Events *EventsProvider
	Logger *slog.Logger
}

// NewCollector wires every provider from one session.
func NewCollector(sess *Session, deployLogGroup string, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Collector{
		EC2:    NewEC2Provider(sess),
		RDS:    NewRDSProvider(sess),
		S3:     NewS3Provider(sess),
		ELB:    NewELBProvider(sess),
		Events: NewEventsProvider(sess, deployLogGroup),
		Logger: logger,
	}
}

// Collect gathers the snapshot for one deployment.
func (c *Collector) Collect(ctx context.Context, deploymentID string, lookbackDays int) *inventory.Inventory {
	inv := &inventory.Inventory{}

	var wg sync.WaitGroup
	var mu sync.Mutex

	gather := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				c.Logger.Warn("Inventory collection degraded", "provider", name, "error", err)
			}
		}()
	}

	gather("ec2-instances", func() error {
		instances, err := c.EC2.Instances(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		inv.Instances = instances
		mu.Unlock()
		return nil
	})
	gather("ebs-volumes", func() error {
		volumes, err := c.EC2.Volumes(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		inv.Volumes = volumes
		mu.Unlock()
		return nil
	})
	gather("security-groups", func() error {
		rules, err := c.EC2.IngressRules(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		inv.IngressRules = rules
		mu.Unlock()
		return nil
	})
	gather("rds", func() error {
		dbs, err := c.RDS.DBInstances(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		inv.DBInstances = dbs
		mu.Unlock()
		return nil
	})
	gather("s3", func() error {
		buckets, err := c.S3.Buckets(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		inv.Buckets = buckets
		mu.Unlock()
		return nil
	})
	gather("elb", func() error {
		lbs, err := c.ELB.LoadBalancers(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		inv.LoadBalancers = lbs
		mu.Unlock()
		return nil
	})
	gather("deployment-events", func() error {
		events, err := c.Events.DeploymentEvents(ctx, deploymentID, lookbackDays)
		if err != nil {
			return err
		}
		mu.Lock()
		inv.DeploymentEvents = events
		mu.Unlock()
		return nil
	})

	wg.Wait()
	return inv
}
