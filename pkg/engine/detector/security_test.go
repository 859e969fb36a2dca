package detector

import (
	"context"
	"testing"

	"github.com/redflaghq/costwarden/pkg/config"
	"github.com/redflaghq/costwarden/pkg/engine/flags"
	"github.com/redflaghq/costwarden/pkg/engine/inventory"
)

func TestSecurityWorldOpenSSH(t *testing.T) {
	// 1. Setup: TCP/22 open to 0.0.0.0/0.
	d := NewSecurityDetector(config.DefaultDetectorConfig().Security, nil)
	in := Input{Inventory: &inventory.Inventory{
		IngressRules: []inventory.IngressRule{
			{GroupID: "sg-1", GroupName: "web", Protocol: "tcp", FromPort: 22, ToPort: 22, CIDR: "0.0.0.0/0"},
		},
	}}

	// 2. Execute
	res, err := d.Detect(context.Background(), in)

	// 3. Assert: exactly one critical, auto-fixable security flag.
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if len(res.Flags) != 1 {
		t.Fatalf("got %d flags, want exactly 1", len(res.Flags))
	}

	f := res.Flags[0]
	if f.Category != flags.CategorySecurityRisk {
		t.Errorf("category = %s, want security_risk", f.Category)
	}
	if f.Severity != flags.SeverityCritical {
		t.Errorf("severity = %s, want critical", f.Severity)
	}
	if !f.AutoFixable {
		t.Error("world-open rule must be auto-fixable")
	}
	if f.ResourceID != "sg-1" {
		t.Errorf("resource = %s, want sg-1", f.ResourceID)
	}
}

func TestSecurityRuleSpanningSeveralPortsIsOneFlag(t *testing.T) {
	// A 0-65535 rule covers every sensitive port but is still one rule.
	d := NewSecurityDetector(config.DefaultDetectorConfig().Security, nil)
	in := Input{Inventory: &inventory.Inventory{
		IngressRules: []inventory.IngressRule{
			{GroupID: "sg-1", Protocol: "tcp", FromPort: 0, ToPort: 65535, CIDR: "::/0"},
		},
	}}

	res, _ := d.Detect(context.Background(), in)

	if len(res.Flags) != 1 {
		t.Errorf("got %d flags, want 1 per rule", len(res.Flags))
	}
}

func TestSecurityScopedRuleIsQuiet(t *testing.T) {
	d := NewSecurityDetector(config.DefaultDetectorConfig().Security, nil)
	in := Input{Inventory: &inventory.Inventory{
		IngressRules: []inventory.IngressRule{
			// SSH restricted to the office network.
			{GroupID: "sg-1", Protocol: "tcp", FromPort: 22, ToPort: 22, CIDR: "10.20.0.0/16"},
			// World-open, but only HTTPS.
			{GroupID: "sg-2", Protocol: "tcp", FromPort: 443, ToPort: 443, CIDR: "0.0.0.0/0"},
		},
	}}

	res, _ := d.Detect(context.Background(), in)

	if len(res.Flags) != 0 {
		t.Errorf("benign rules flagged: %+v", res.Flags)
	}
}

func TestSecurityBroadRangeWithoutSensitivePortsIsWarning(t *testing.T) {
	// No sensitive port in 10000-20000, but the range is far wider than the
	// configured ceiling.
	d := NewSecurityDetector(config.DefaultDetectorConfig().Security, nil)
	in := Input{Inventory: &inventory.Inventory{
		IngressRules: []inventory.IngressRule{
			{GroupID: "sg-1", Protocol: "tcp", FromPort: 10000, ToPort: 20000, CIDR: "0.0.0.0/0"},
		},
	}}

	res, _ := d.Detect(context.Background(), in)

	if len(res.Flags) != 1 {
		t.Fatalf("got %d flags, want 1", len(res.Flags))
	}
	if res.Flags[0].Severity != flags.SeverityWarning {
		t.Errorf("severity = %s, want warning for a broad non-sensitive range", res.Flags[0].Severity)
	}
}

func TestSecurityPublicDatabase(t *testing.T) {
	d := NewSecurityDetector(config.DefaultDetectorConfig().Security, nil)
	in := Input{Inventory: &inventory.Inventory{
		DBInstances: []inventory.DBInstance{
			{ID: "db-prod", Engine: "postgres", PubliclyAccessible: true, StorageEncrypted: true},
			{ID: "db-internal", Engine: "mysql", PubliclyAccessible: false, StorageEncrypted: true},
		},
	}}

	res, _ := d.Detect(context.Background(), in)

	if len(res.Flags) != 1 {
		t.Fatalf("got %d flags, want 1", len(res.Flags))
	}
	if res.Flags[0].ResourceID != "db-prod" || res.Flags[0].Severity != flags.SeverityCritical {
		t.Errorf("flag = %+v, want critical on db-prod", res.Flags[0])
	}
}

func TestSecurityUnencryptedStorageIsWarning(t *testing.T) {
	d := NewSecurityDetector(config.DefaultDetectorConfig().Security, nil)
	in := Input{Inventory: &inventory.Inventory{
		Volumes: []inventory.Volume{
			{ID: "vol-1", VolumeType: "gp3", SizeGB: 80, Encrypted: false, State: "in-use"},
			{ID: "vol-2", VolumeType: "gp3", SizeGB: 80, Encrypted: true, State: "in-use"},
		},
		DBInstances: []inventory.DBInstance{
			{ID: "db-1", Engine: "postgres", StorageEncrypted: false},
		},
	}}

	res, _ := d.Detect(context.Background(), in)

	if len(res.Flags) != 2 {
		t.Fatalf("got %d flags, want 2", len(res.Flags))
	}
	for _, f := range res.Flags {
		if f.Severity != flags.SeverityWarning {
			t.Errorf("%s severity = %s, want warning", f.ResourceID, f.Severity)
		}
	}
}

func TestSecurityBucketPosture(t *testing.T) {
	d := NewSecurityDetector(config.DefaultDetectorConfig().Security, nil)
	in := Input{Inventory: &inventory.Inventory{
		Buckets: []inventory.Bucket{
			{Name: "assets", Encrypted: true, PublicAccessBlocked: false},
			{Name: "logs", Encrypted: false, PublicAccessBlocked: true},
			{Name: "backups", Encrypted: true, PublicAccessBlocked: true},
		},
	}}

	res, _ := d.Detect(context.Background(), in)

	bySeverity := map[flags.Severity]int{}
	for _, f := range res.Flags {
		bySeverity[f.Severity]++
	}
	if bySeverity[flags.SeverityCritical] != 1 {
		t.Errorf("critical count = %d, want 1 (missing public access block)", bySeverity[flags.SeverityCritical])
	}
	if bySeverity[flags.SeverityWarning] != 1 {
		t.Errorf("warning count = %d, want 1 (no default encryption)", bySeverity[flags.SeverityWarning])
	}
}

func TestSecurityChecksCanBeToggledOff(t *testing.T) {
	// 1. Setup: everything wrong, every check disabled.
	cfg := config.DefaultDetectorConfig().Security
	cfg.CheckSecurityGroups = false
	cfg.CheckEncryption = false
	cfg.CheckPublicAccess = false
	d := NewSecurityDetector(cfg, nil)

	in := Input{Inventory: &inventory.Inventory{
		IngressRules: []inventory.IngressRule{{GroupID: "sg-1", Protocol: "tcp", FromPort: 22, ToPort: 22, CIDR: "0.0.0.0/0"}},
		DBInstances:  []inventory.DBInstance{{ID: "db-1", PubliclyAccessible: true}},
		Volumes:      []inventory.Volume{{ID: "vol-1", Encrypted: false, State: "in-use"}},
		Buckets:      []inventory.Bucket{{Name: "open", Encrypted: false, PublicAccessBlocked: false}},
	}}

	// 2. Execute
	res, _ := d.Detect(context.Background(), in)

	// 3. Assert
	if len(res.Flags) != 0 {
		t.Errorf("disabled checks still produced %d flags", len(res.Flags))
	}
}

func TestSecurityDisabledDetector(t *testing.T) {
	cfg := config.DefaultDetectorConfig().Security
	cfg.Enabled = false
	d := NewSecurityDetector(cfg, nil)

	res, err := d.Detect(context.Background(), Input{Inventory: &inventory.Inventory{
		DBInstances: []inventory.DBInstance{{ID: "db-1", PubliclyAccessible: true}},
	}})

	if err != nil || len(res.Flags) != 0 || res.Metadata.ExecutionTime != 0 {
		t.Errorf("disabled detector misbehaved: flags=%d err=%v", len(res.Flags), err)
	}
}
