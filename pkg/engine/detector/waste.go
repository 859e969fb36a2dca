package detector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redflaghq/costwarden/pkg/config"
	"github.com/redflaghq/costwarden/pkg/engine/flags"
	"github.com/redflaghq/costwarden/pkg/engine/inventory"
	"github.com/redflaghq/costwarden/pkg/engine/pricing"
)

// UtilizationMetrics supplies per-resource utilization over a lookback
// window. The AWS implementation lives in awsx; tests inject stubs.
type UtilizationMetrics interface {
	AverageCPUPercent(ctx context.Context, instanceID string, days int) (float64, error)
	NetworkBytesPerDay(ctx context.Context, instanceID string, days int) (float64, error)
	DiskOpsPerDay(ctx context.Context, instanceID string, days int) (float64, error)
	LoadBalancerRequests(ctx context.Context, lbARN string, days int) (float64, error)
}

// WasteDetector flags resources whose utilization over the scan period sits
// below the configured floors: idle instances, unattached volumes, idle load
// balancers.
type WasteDetector struct {
	Config  config.WasteConfig
	Metrics UtilizationMetrics
	Pricing pricing.Source
	Logger  *slog.Logger
	Clock   func() time.Time
}

// NewWasteDetector wires the detector.
func NewWasteDetector(cfg config.WasteConfig, metrics UtilizationMetrics, prices pricing.Source, logger *slog.Logger) *WasteDetector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if prices == nil {
		prices = pricing.DefaultTable()
	}
	return &WasteDetector{Config: cfg, Metrics: metrics, Pricing: prices, Logger: logger, Clock: time.Now}
}

func (d *WasteDetector) ID() string      { return "resource-waste" }
func (d *WasteDetector) Version() string { return "1.4.0" }
func (d *WasteDetector) Enabled() bool   { return d.Config.Enabled }

func (d *WasteDetector) Detect(ctx context.Context, in Input) (Result, error) {
	if !d.Enabled() {
		return disabledResult(d), nil
	}
	start := d.Clock()

	inv := in.Inventory
	if inv == nil {
		inv = &inventory.Inventory{}
	}
	scanned := len(inv.Instances) + len(inv.Volumes) + len(inv.LoadBalancers)

	var found []flags.RedFlag
	found = append(found, runScan(d.Logger, d.ID(), "idle-instances", func() ([]flags.RedFlag, error) {
		return d.scanInstances(ctx, inv.Instances)
	})...)
	found = append(found, runScan(d.Logger, d.ID(), "unattached-volumes", func() ([]flags.RedFlag, error) {
		return d.scanVolumes(ctx, inv.Volumes)
	})...)
	found = append(found, runScan(d.Logger, d.ID(), "idle-load-balancers", func() ([]flags.RedFlag, error) {
		return d.scanLoadBalancers(ctx, inv.LoadBalancers)
	})...)

	return Result{Flags: found, Metadata: finishMetadata(d, start, scanned)}, nil
}

func (d *WasteDetector) scanInstances(ctx context.Context, instances []inventory.Instance) ([]flags.RedFlag, error) {
	if d.Metrics == nil {
		return nil, fmt.Errorf("no utilization metrics provider configured")
	}

	days := d.Config.ScanPeriodDays
	var found []flags.RedFlag

	for _, inst := range instances {
		if inst.State != "running" {
			continue
		}

		avgCPU, err := d.Metrics.AverageCPUPercent(ctx, inst.ID, days)
		if err != nil {
			d.Logger.Warn("Skipping instance, CPU metric unavailable", "instance", inst.ID, "error", err)
			continue
		}
		if avgCPU >= d.Config.MaxCPUUtilizationPercent {
			continue
		}

		// Network and disk are supporting signals; a metric failure here
		// must not hide a clearly idle instance.
		netMB := 0.0
		if bytes, err := d.Metrics.NetworkBytesPerDay(ctx, inst.ID, days); err == nil {
			netMB = bytes / 1e6
		}
		if netMB >= d.Config.MinNetworkTrafficMBPerDay {
			continue
		}

		diskOps := 0.0
		if ops, err := d.Metrics.DiskOpsPerDay(ctx, inst.ID, days); err == nil {
			diskOps = ops
		}
		if diskOps >= d.Config.MinDiskIOOpsPerDay {
			continue
		}

		sev := flags.SeverityWarning
		if avgCPU < d.Config.CriticalCPUPercent {
			sev = flags.SeverityCritical
		}

		f := flags.RedFlag{
			ID:           newFlagID(),
			Category:     flags.CategoryResourceWaste,
			Severity:     sev,
			Title:        fmt.Sprintf("Idle EC2 instance %s", inst.ID),
			Description:  fmt.Sprintf("Instance %s (%s) averaged %.1f%% CPU and %.1f MB/day network over the last %d days.", inst.ID, inst.InstanceType, avgCPU, netMB, days),
			DetectedAt:   d.Clock(),
			ResourceID:   inst.ID,
			ResourceType: "ec2-instance",
			AutoFixable:  true,
			SuggestedFix: fmt.Sprintf("aws ec2 stop-instances --instance-ids %s", inst.ID),
			Metadata: map[string]string{
				"instance_type":   inst.InstanceType,
				"avg_cpu_percent": fmt.Sprintf("%.2f", avgCPU),
				"scan_days":       fmt.Sprintf("%d", days),
			},
		}

		if monthly, ok := d.Pricing.InstanceMonthly(ctx, inst.Region, inst.InstanceType); ok {
			cost := flags.RoundCents(monthly)
			f.EstimatedMonthlyCost = flags.Money(cost)
			f.EstimatedSavings = flags.Money(cost)
		}

		found = append(found, f)
	}
	return found, nil
}

func (d *WasteDetector) scanVolumes(ctx context.Context, volumes []inventory.Volume) ([]flags.RedFlag, error) {
	var found []flags.RedFlag
	for _, vol := range volumes {
		if vol.State != "available" {
			continue
		}

		f := flags.RedFlag{
			ID:           newFlagID(),
			Category:     flags.CategoryResourceWaste,
			Severity:     flags.SeverityWarning,
			Title:        fmt.Sprintf("Unattached EBS volume %s", vol.ID),
			Description:  fmt.Sprintf("Volume %s (%d GB %s) is not attached to any instance.", vol.ID, vol.SizeGB, vol.VolumeType),
			DetectedAt:   d.Clock(),
			ResourceID:   vol.ID,
			ResourceType: "ebs-volume",
			AutoFixable:  true,
			SuggestedFix: fmt.Sprintf("aws ec2 delete-volume --volume-id %s", vol.ID),
			Metadata: map[string]string{
				"volume_type": vol.VolumeType,
				"size_gb":     fmt.Sprintf("%d", vol.SizeGB),
			},
		}

		if perGB, ok := d.Pricing.VolumeGBMonthly(ctx, vol.Region, vol.VolumeType); ok {
			cost := flags.RoundCents(perGB * float64(vol.SizeGB))
			f.EstimatedMonthlyCost = flags.Money(cost)
			f.EstimatedSavings = flags.Money(cost)
		}

		found = append(found, f)
	}
	return found, nil
}

func (d *WasteDetector) scanLoadBalancers(ctx context.Context, lbs []inventory.LoadBalancer) ([]flags.RedFlag, error) {
	if len(lbs) == 0 {
		return nil, nil
	}
	if d.Metrics == nil {
		return nil, fmt.Errorf("no utilization metrics provider configured")
	}

	days := d.Config.ScanPeriodDays
	var found []flags.RedFlag

	for _, lb := range lbs {
		requests, err := d.Metrics.LoadBalancerRequests(ctx, lb.ARN, days)
		if err != nil {
			d.Logger.Warn("Skipping load balancer, request metric unavailable", "lb", lb.Name, "error", err)
			continue
		}
		if requests > 0 {
			continue
		}

		f := flags.RedFlag{
			ID:           newFlagID(),
			Category:     flags.CategoryResourceWaste,
			Severity:     flags.SeverityWarning,
			Title:        fmt.Sprintf("Idle load balancer %s", lb.Name),
			Description:  fmt.Sprintf("Load balancer %s served zero requests over the last %d days.", lb.Name, days),
			DetectedAt:   d.Clock(),
			ResourceID:   lb.ARN,
			ResourceType: "load-balancer",
			AutoFixable:  false,
			Metadata: map[string]string{
				"lb_type":   lb.Type,
				"scan_days": fmt.Sprintf("%d", days),
			},
		}

		if monthly, ok := d.Pricing.LoadBalancerMonthly(ctx, lb.Region); ok {
			cost := flags.RoundCents(monthly)
			f.EstimatedMonthlyCost = flags.Money(cost)
			f.EstimatedSavings = flags.Money(cost)
		}

		found = append(found, f)
	}
	return found, nil
}
