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
)

// SecurityDetector checks the inventory for exposure and encryption issues:
// world-open security groups, public databases, unencrypted storage.
type SecurityDetector struct {
	Config config.SecurityConfig
	Logger *slog.Logger
	Clock  func() time.Time
}

// NewSecurityDetector wires the detector.
func NewSecurityDetector(cfg config.SecurityConfig, logger *slog.Logger) *SecurityDetector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SecurityDetector{Config: cfg, Logger: logger, Clock: time.Now}
}

func (d *SecurityDetector) ID() string      { return "security-risk" }
func (d *SecurityDetector) Version() string { return "1.1.0" }
func (d *SecurityDetector) Enabled() bool   { return d.Config.Enabled }

func (d *SecurityDetector) Detect(ctx context.Context, in Input) (Result, error) {
	if !d.Enabled() {
		return disabledResult(d), nil
	}
	start := d.Clock()

	inv := in.Inventory
	if inv == nil {
		inv = &inventory.Inventory{}
	}
	scanned := len(inv.IngressRules) + len(inv.DBInstances) + len(inv.Volumes) + len(inv.Buckets)

	var found []flags.RedFlag
	if d.Config.CheckSecurityGroups {
		found = append(found, runScan(d.Logger, d.ID(), "security-groups", func() ([]flags.RedFlag, error) {
			return d.scanIngressRules(inv.IngressRules), nil
		})...)
	}
	if d.Config.CheckPublicAccess {
		found = append(found, runScan(d.Logger, d.ID(), "public-databases", func() ([]flags.RedFlag, error) {
			return d.scanDatabases(inv.DBInstances), nil
		})...)
	}
	if d.Config.CheckEncryption {
		found = append(found, runScan(d.Logger, d.ID(), "encryption", func() ([]flags.RedFlag, error) {
			return d.scanEncryption(inv.Volumes, inv.DBInstances), nil
		})...)
	}
	found = append(found, runScan(d.Logger, d.ID(), "buckets", func() ([]flags.RedFlag, error) {
		return d.scanBuckets(inv.Buckets), nil
	})...)

	return Result{Flags: found, Metadata: finishMetadata(d, start, scanned)}, nil
}

// scanIngressRules emits exactly one flag per offending world-open rule. A
// rule spanning several sensitive ports is still one rule and one flag; a
// rule that exposes no sensitive port but opens a wide range is flagged at
// warning severity.
func (d *SecurityDetector) scanIngressRules(rules []inventory.IngressRule) []flags.RedFlag {
	var found []flags.RedFlag
	for _, rule := range rules {
		if !rule.WorldOpen() {
			continue
		}

		var exposed []int
		for _, port := range d.Config.SensitivePorts {
			if rule.Covers(port) {
				exposed = append(exposed, port)
			}
		}
		span := rule.ToPort - rule.FromPort + 1
		broad := d.Config.MaxOpenPortsPublic > 0 && span > d.Config.MaxOpenPortsPublic
		if len(exposed) == 0 && !broad {
			continue
		}

		sev := flags.SeverityCritical
		desc := fmt.Sprintf("Rule %s (%s) allows %s from %s on ports %d-%d, exposing sensitive ports %v.",
			rule.GroupID, rule.GroupName, rule.Protocol, rule.CIDR, rule.FromPort, rule.ToPort, exposed)
		if len(exposed) == 0 {
			sev = flags.SeverityWarning
			desc = fmt.Sprintf("Rule %s (%s) allows %s from %s on ports %d-%d, opening %d ports to the internet.",
				rule.GroupID, rule.GroupName, rule.Protocol, rule.CIDR, rule.FromPort, rule.ToPort, span)
		}

		found = append(found, flags.RedFlag{
			ID:           newFlagID(),
			Category:     flags.CategorySecurityRisk,
			Severity:     sev,
			Title:        fmt.Sprintf("Security group %s open to the internet", rule.GroupID),
			Description:  desc,
			DetectedAt:   d.Clock(),
			ResourceID:   rule.GroupID,
			ResourceType: "security-group",
			AutoFixable:  true,
			SuggestedFix: fmt.Sprintf("aws ec2 revoke-security-group-ingress --group-id %s --protocol %s --port %d-%d --cidr %s",
				rule.GroupID, rule.Protocol, rule.FromPort, rule.ToPort, rule.CIDR),
			Metadata: map[string]string{
				"cidr":          rule.CIDR,
				"exposed_ports": fmt.Sprintf("%v", exposed),
				"open_ports":    fmt.Sprintf("%d", span),
			},
		})
	}
	return found
}

func (d *SecurityDetector) scanDatabases(dbs []inventory.DBInstance) []flags.RedFlag {
	var found []flags.RedFlag
	for _, db := range dbs {
		if !db.PubliclyAccessible {
			continue
		}
		found = append(found, flags.RedFlag{
			ID:           newFlagID(),
			Category:     flags.CategorySecurityRisk,
			Severity:     flags.SeverityCritical,
			Title:        fmt.Sprintf("Publicly accessible database %s", db.ID),
			Description:  fmt.Sprintf("RDS instance %s (%s) is reachable from the public internet.", db.ID, db.Engine),
			DetectedAt:   d.Clock(),
			ResourceID:   db.ID,
			ResourceType: "rds-instance",
			AutoFixable:  true,
			SuggestedFix: fmt.Sprintf("aws rds modify-db-instance --db-instance-identifier %s --no-publicly-accessible", db.ID),
			Metadata:     map[string]string{"engine": db.Engine},
		})
	}
	return found
}

func (d *SecurityDetector) scanEncryption(volumes []inventory.Volume, dbs []inventory.DBInstance) []flags.RedFlag {
	var found []flags.RedFlag
	for _, vol := range volumes {
		if vol.Encrypted {
			continue
		}
		found = append(found, flags.RedFlag{
			ID:           newFlagID(),
			Category:     flags.CategorySecurityRisk,
			Severity:     flags.SeverityWarning,
			Title:        fmt.Sprintf("Unencrypted EBS volume %s", vol.ID),
			Description:  fmt.Sprintf("Volume %s (%d GB %s) stores data without encryption at rest.", vol.ID, vol.SizeGB, vol.VolumeType),
			DetectedAt:   d.Clock(),
			ResourceID:   vol.ID,
			ResourceType: "ebs-volume",
			Metadata:     map[string]string{"volume_type": vol.VolumeType},
		})
	}
	for _, db := range dbs {
		if db.StorageEncrypted {
			continue
		}
		found = append(found, flags.RedFlag{
			ID:           newFlagID(),
			Category:     flags.CategorySecurityRisk,
			Severity:     flags.SeverityWarning,
			Title:        fmt.Sprintf("Unencrypted database storage on %s", db.ID),
			Description:  fmt.Sprintf("RDS instance %s (%s) has storage encryption disabled.", db.ID, db.Engine),
			DetectedAt:   d.Clock(),
			ResourceID:   db.ID,
			ResourceType: "rds-instance",
			Metadata:     map[string]string{"engine": db.Engine},
		})
	}
	return found
}

func (d *SecurityDetector) scanBuckets(buckets []inventory.Bucket) []flags.RedFlag {
	var found []flags.RedFlag
	for _, b := range buckets {
		if d.Config.CheckPublicAccess && !b.PublicAccessBlocked {
			found = append(found, flags.RedFlag{
				ID:           newFlagID(),
				Category:     flags.CategorySecurityRisk,
				Severity:     flags.SeverityCritical,
				Title:        fmt.Sprintf("Bucket %s without public access block", b.Name),
				Description:  fmt.Sprintf("S3 bucket %s has no public access block configured.", b.Name),
				DetectedAt:   d.Clock(),
				ResourceID:   b.Name,
				ResourceType: "s3-bucket",
				AutoFixable:  true,
				SuggestedFix: fmt.Sprintf("aws s3api put-public-access-block --bucket %s --public-access-block-configuration BlockPublicAcls=true,IgnorePublicAcls=true,BlockPublicPolicy=true,RestrictPublicBuckets=true", b.Name),
			})
		}
		if d.Config.CheckEncryption && !b.Encrypted {
			found = append(found, flags.RedFlag{
				ID:           newFlagID(),
				Category:     flags.CategorySecurityRisk,
				Severity:     flags.SeverityWarning,
				Title:        fmt.Sprintf("Bucket %s without default encryption", b.Name),
				Description:  fmt.Sprintf("S3 bucket %s has no default server-side encryption.", b.Name),
				DetectedAt:   d.Clock(),
				ResourceID:   b.Name,
				ResourceType: "s3-bucket",
			})
		}
	}
	return found
}
