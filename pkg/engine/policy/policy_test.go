package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redflaghq/costwarden/pkg/engine/flags"
)

func TestSuppressRule(t *testing.T) {
	// 1. Setup: drop low-value waste findings.
	engine, err := NewEngine([]Rule{{
		ID:         "ignore-pennies",
		Expression: `category == 'resource_waste' && savings < 5.0`,
		Action:     ActionSuppress,
	}}, nil)
	require.NoError(t, err)

	input := []flags.RedFlag{
		{ID: "cheap", Category: flags.CategoryResourceWaste, Severity: flags.SeverityWarning, EstimatedSavings: flags.Money(2.10)},
		{ID: "pricey", Category: flags.CategoryResourceWaste, Severity: flags.SeverityWarning, EstimatedSavings: flags.Money(80)},
		{ID: "security", Category: flags.CategorySecurityRisk, Severity: flags.SeverityCritical},
	}

	// 2. Execute
	out := engine.Apply(input)

	// 3. Assert
	require.Len(t, out, 2)
	assert.Equal(t, "pricey", out[0].ID)
	assert.Equal(t, "security", out[1].ID)
}

func TestDowngradeRule(t *testing.T) {
	engine, err := NewEngine([]Rule{{
		ID:          "sandbox-is-noise",
		Expression:  `metadata['env'] == 'sandbox'`,
		Action:      ActionDowngrade,
		DowngradeTo: flags.SeverityInfo,
	}}, nil)
	require.NoError(t, err)

	input := []flags.RedFlag{
		{ID: "sand", Severity: flags.SeverityCritical, Metadata: map[string]string{"env": "sandbox"}},
		{ID: "prod", Severity: flags.SeverityCritical, Metadata: map[string]string{"env": "prod"}},
	}

	out := engine.Apply(input)

	require.Len(t, out, 2)
	assert.Equal(t, flags.SeverityInfo, out[0].Severity)
	assert.Equal(t, flags.SeverityCritical, out[1].Severity)
}

func TestDowngradeNeverEscalates(t *testing.T) {
	// A downgrade target above the current severity must not raise it.
	engine, err := NewEngine([]Rule{{
		ID:          "cap",
		Expression:  `true`,
		Action:      ActionDowngrade,
		DowngradeTo: flags.SeverityWarning,
	}}, nil)
	require.NoError(t, err)

	out := engine.Apply([]flags.RedFlag{{ID: "x", Severity: flags.SeverityInfo}})

	require.Len(t, out, 1)
	assert.Equal(t, flags.SeverityInfo, out[0].Severity)
}

func TestCompileErrorFailsLoad(t *testing.T) {
	_, err := NewEngine([]Rule{{
		ID:         "broken",
		Expression: `category ==`,
		Action:     ActionSuppress,
	}}, nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestUnknownActionFailsLoad(t *testing.T) {
	_, err := NewEngine([]Rule{{
		ID:         "weird",
		Expression: `true`,
		Action:     Action("escalate"),
	}}, nil)

	assert.Error(t, err)
}

func TestDuplicateRuleIDFailsLoad(t *testing.T) {
	// Two rules under one id would silently shadow each other's programs.
	_, err := NewEngine([]Rule{
		{ID: "same", Expression: `severity == 'info'`, Action: ActionSuppress},
		{ID: "same", Expression: `severity == 'critical'`, Action: ActionSuppress},
	}, nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestDowngradeWithoutTargetFailsLoad(t *testing.T) {
	_, err := NewEngine([]Rule{{
		ID:         "no-target",
		Expression: `true`,
		Action:     ActionDowngrade,
	}}, nil)

	assert.Error(t, err)
}

func TestEmptyRuleSetPassesThrough(t *testing.T) {
	engine, err := NewEngine(nil, nil)
	require.NoError(t, err)

	input := []flags.RedFlag{{ID: "a"}, {ID: "b"}}
	out := engine.Apply(input)

	assert.Equal(t, input, out)
}

func TestRuleOverMissingSavingsTreatsAsZero(t *testing.T) {
	engine, err := NewEngine([]Rule{{
		ID:         "zero",
		Expression: `savings == 0.0`,
		Action:     ActionSuppress,
	}}, nil)
	require.NoError(t, err)

	out := engine.Apply([]flags.RedFlag{{ID: "no-savings"}})

	assert.Empty(t, out)
}
