// Package config defines default configuration for the detectors, the
// forecaster, and the aggregation run.
package config

import "time"

// DetectorConfig bundles the per-detector settings.
type DetectorConfig struct {
	Anomaly  AnomalyConfig  `mapstructure:"anomaly"`
	Waste    WasteConfig    `mapstructure:"waste"`
	Security SecurityConfig `mapstructure:"security"`
	Deploy   DeployConfig   `mapstructure:"deploy"`
}

// AnomalyConfig tunes the statistical cost-anomaly detector.
type AnomalyConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// MinSamples is the smallest historical window the detector will
	// compute a baseline from; below it the detector abstains.
	MinSamples int `mapstructure:"min_samples"`
	// WarningZScore and CriticalZScore are |z| thresholds.
	WarningZScore  float64 `mapstructure:"warning_z_score"`
	CriticalZScore float64 `mapstructure:"critical_z_score"`
	// PerService enables independent per-service anomaly checks alongside
	// the aggregate one.
	PerService bool `mapstructure:"per_service"`
	// MinServiceSpend skips services below this weekly spend.
	MinServiceSpend float64 `mapstructure:"min_service_spend"`
}

// WasteConfig tunes the resource-waste detector.
type WasteConfig struct {
	Enabled                   bool    `mapstructure:"enabled"`
	MaxCPUUtilizationPercent  float64 `mapstructure:"max_cpu_utilization_percent"`
	CriticalCPUPercent        float64 `mapstructure:"critical_cpu_percent"`
	MinNetworkTrafficMBPerDay float64 `mapstructure:"min_network_traffic_mb_per_day"`
	MinDiskIOOpsPerDay        float64 `mapstructure:"min_disk_io_ops_per_day"`
	ScanPeriodDays            int     `mapstructure:"scan_period_days"`
}

// SecurityConfig tunes the security-risk detector.
type SecurityConfig struct {
	Enabled             bool  `mapstructure:"enabled"`
	CheckSecurityGroups bool  `mapstructure:"check_security_groups"`
	CheckEncryption     bool  `mapstructure:"check_encryption"`
	CheckPublicAccess   bool  `mapstructure:"check_public_access"`
	// MaxOpenPortsPublic is the widest port range a single world-open rule
	// may expose before it is flagged even when no sensitive port is covered.
	// Zero disables the range check.
	MaxOpenPortsPublic int   `mapstructure:"max_open_ports_public"`
	SensitivePorts     []int `mapstructure:"sensitive_ports"`
}

// DeployConfig tunes the deployment-failure detector.
type DeployConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// LookbackDays bounds how old a deployment event may be.
	LookbackDays int `mapstructure:"lookback_days"`
	// CriticalFailureCount escalates a failure streak to critical.
	CriticalFailureCount int `mapstructure:"critical_failure_count"`
}

// ForecastConfig tunes the trend forecaster.
type ForecastConfig struct {
	// MinSamples is the window below which the forecaster discloses reduced
	// confidence.
	MinSamples int `mapstructure:"min_samples"`
	// StableSlopePercent classifies the trend as stable when the weekly
	// slope stays within this percentage of the mean weekly total.
	StableSlopePercent float64 `mapstructure:"stable_slope_percent"`
}

// AggregatorConfig bounds the concurrent detector run.
type AggregatorConfig struct {
	DetectorTimeout time.Duration `mapstructure:"detector_timeout"`
	OverallTimeout  time.Duration `mapstructure:"overall_timeout"`
}

// DefaultDetectorConfig returns the safe defaults.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Anomaly: AnomalyConfig{
			Enabled:         true,
			MinSamples:      4,
			WarningZScore:   2.0,
			CriticalZScore:  3.0,
			PerService:      true,
			MinServiceSpend: 1.0,
		},
		Waste: WasteConfig{
			Enabled:                   true,
			MaxCPUUtilizationPercent:  5.0,
			CriticalCPUPercent:        1.0,
			MinNetworkTrafficMBPerDay: 1.0,
			MinDiskIOOpsPerDay:        100,
			ScanPeriodDays:            7,
		},
		Security: SecurityConfig{
			Enabled:             true,
			CheckSecurityGroups: true,
			CheckEncryption:     true,
			CheckPublicAccess:   true,
			MaxOpenPortsPublic:  100,
			SensitivePorts:      []int{22, 3389, 3306, 5432, 6379, 9200, 27017},
		},
		Deploy: DeployConfig{
			Enabled:              true,
			LookbackDays:         7,
			CriticalFailureCount: 3,
		},
	}
}

// DefaultForecastConfig returns the forecaster defaults.
func DefaultForecastConfig() ForecastConfig {
	return ForecastConfig{
		MinSamples:         4,
		StableSlopePercent: 2.0,
	}
}

// DefaultAggregatorConfig returns the aggregation deadlines.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		DetectorTimeout: 2 * time.Minute,
		OverallTimeout:  5 * time.Minute,
	}
}
