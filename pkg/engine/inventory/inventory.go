// Package inventory holds the point-in-time resource snapshot the detectors
// scan. Providers (AWS clients, mocks) populate it; detectors only read it.
package inventory

import "time"

// Instance is one EC2 instance.
type Instance struct {
	ID           string
	InstanceType string
	State        string
	Region       string
	LaunchTime   time.Time
	Tags         map[string]string
}

// Volume is one EBS volume.
type Volume struct {
	ID                 string
	VolumeType         string
	SizeGB             int
	State              string // "available" means unattached
	Encrypted          bool
	AttachedInstanceID string
	Region             string
}

// IngressRule is one security-group ingress permission, flattened to a
// single port/CIDR pair.
type IngressRule struct {
	GroupID   string
	GroupName string
	Protocol  string
	FromPort  int
	ToPort    int
	CIDR      string
	Region    string
}

// WorldOpen reports whether the rule admits the whole internet.
func (r IngressRule) WorldOpen() bool {
	return r.CIDR == "0.0.0.0/0" || r.CIDR == "::/0"
}

// Covers reports whether the rule's port range includes port.
func (r IngressRule) Covers(port int) bool {
	return r.FromPort <= port && port <= r.ToPort
}

// DBInstance is one RDS instance.
type DBInstance struct {
	ID                 string
	Engine             string
	InstanceClass      string
	PubliclyAccessible bool
	StorageEncrypted   bool
	Region             string
}

// Bucket is one S3 bucket.
type Bucket struct {
	Name                string
	Encrypted           bool
	PublicAccessBlocked bool
	Region              string
}

// LoadBalancer is one ELBv2 load balancer.
type LoadBalancer struct {
	ARN    string
	Name   string
	Type   string
	Region string
}

// DeploymentEvent is one deployment health signal (health-check failure,
// rollback) surfaced by the log provider.
type DeploymentEvent struct {
	DeploymentID string
	Kind         EventKind
	Message      string
	Timestamp    time.Time
}

// EventKind classifies a deployment event.
type EventKind string

const (
	EventHealthCheckFailure EventKind = "health_check_failure"
	EventRollback           EventKind = "rollback"
	EventCrashLoop          EventKind = "crash_loop"
)

// Inventory is the resource snapshot for one deployment.
type Inventory struct {
	Instances        []Instance
	Volumes          []Volume
	IngressRules     []IngressRule
	DBInstances      []DBInstance
	Buckets          []Bucket
	LoadBalancers    []LoadBalancer
	DeploymentEvents []DeploymentEvent
}

// TotalResources counts every inventoried resource. Deployment events are
// signals, not resources, and are excluded.
func (inv *Inventory) TotalResources() int {
	if inv == nil {
		return 0
	}
	return len(inv.Instances) + len(inv.Volumes) + len(inv.IngressRules) +
		len(inv.DBInstances) + len(inv.Buckets) + len(inv.LoadBalancers)
}
