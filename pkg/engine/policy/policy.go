// Package policy filters aggregated flags through user-defined CEL rules.
// Rules can suppress a flag entirely or downgrade its severity.
package policy

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
	"gopkg.in/yaml.v3"

	"github.com/redflaghq/costwarden/pkg/engine/flags"
)

// Action names what a matched rule does to a flag.
type Action string

const (
	ActionSuppress  Action = "suppress"
	ActionDowngrade Action = "downgrade"
)

// Rule is one user-defined policy rule.
type Rule struct {
	ID          string `yaml:"id" json:"id"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Expression is a CEL predicate over the flag's attributes, e.g.
	// `category == 'resource_waste' && savings < 5.0`.
	Expression string `yaml:"expression" json:"expression"`
	Action     Action `yaml:"action" json:"action"`
	// DowngradeTo is the target severity for downgrade rules.
	DowngradeTo flags.Severity `yaml:"downgrade_to,omitempty" json:"downgrade_to,omitempty"`
}

// RuleFile is the on-disk shape of a policy document.
type RuleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Engine holds the compiled rule programs.
type Engine struct {
	rules    []Rule
	programs map[string]cel.Program
	logger   *slog.Logger
}

// NewEngine compiles the rules. A rule that fails to compile fails the whole
// load so a typo cannot silently disable a policy.
func NewEngine(rules []Rule, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("id", decls.String),
			decls.NewVar("category", decls.String),
			decls.NewVar("severity", decls.String),
			decls.NewVar("title", decls.String),
			decls.NewVar("resource_id", decls.String),
			decls.NewVar("resource_type", decls.String),
			decls.NewVar("savings", decls.Double),
			decls.NewVar("monthly_cost", decls.Double),
			decls.NewVar("auto_fixable", decls.Bool),
			decls.NewVar("metadata", decls.NewMapType(decls.String, decls.String)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating CEL env: %w", err)
	}

	e := &Engine{rules: rules, programs: make(map[string]cel.Program), logger: logger}
	for _, r := range rules {
		if _, dup := e.programs[r.ID]; dup {
			return nil, fmt.Errorf("rule %s: duplicate id", r.ID)
		}
		if r.Action != ActionSuppress && r.Action != ActionDowngrade {
			return nil, fmt.Errorf("rule %s: unknown action %q", r.ID, r.Action)
		}
		if r.Action == ActionDowngrade && r.DowngradeTo == "" {
			return nil, fmt.Errorf("rule %s: downgrade rule needs downgrade_to", r.ID)
		}

		ast, issues := env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		e.programs[r.ID] = prg
	}
	return e, nil
}

// LoadFile reads a YAML policy document and compiles it.
func LoadFile(path string, logger *slog.Logger) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing policy file %s: %w", path, err)
	}
	return NewEngine(rf.Rules, logger)
}

// Apply runs every flag through the rule set. Suppressed flags are dropped;
// downgraded flags keep everything but severity. The returned slice preserves
// the input order of the surviving flags, so a severity re-sort afterwards is
// the caller's job.
func (e *Engine) Apply(in []flags.RedFlag) []flags.RedFlag {
	if len(e.rules) == 0 {
		return in
	}

	out := make([]flags.RedFlag, 0, len(in))
	for _, f := range in {
		keep := true
		for _, r := range e.rules {
			if !e.matches(r.ID, f) {
				continue
			}
			switch r.Action {
			case ActionSuppress:
				e.logger.Debug("Flag suppressed by policy", "rule", r.ID, "flag", f.Title)
				keep = false
			case ActionDowngrade:
				if r.DowngradeTo.Rank() > f.Severity.Rank() {
					e.logger.Debug("Flag downgraded by policy",
						"rule", r.ID, "flag", f.Title, "to", r.DowngradeTo)
					f.Severity = r.DowngradeTo
				}
			}
			if !keep {
				break
			}
		}
		if keep {
			out = append(out, f)
		}
	}
	return out
}

func (e *Engine) matches(ruleID string, f flags.RedFlag) bool {
	prg := e.programs[ruleID]
	out, _, err := prg.Eval(flagVars(f))
	if err != nil {
		e.logger.Error("Policy rule evaluation failed", "rule", ruleID, "error", err)
		return false
	}
	match, ok := out.Value().(bool)
	return ok && match
}

func flagVars(f flags.RedFlag) map[string]any {
	savings := 0.0
	if f.EstimatedSavings != nil {
		savings = *f.EstimatedSavings
	}
	monthly := 0.0
	if f.EstimatedMonthlyCost != nil {
		monthly = *f.EstimatedMonthlyCost
	}
	meta := f.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	return map[string]any{
		"id":            f.ID,
		"category":      string(f.Category),
		"severity":      string(f.Severity),
		"title":         f.Title,
		"resource_id":   f.ResourceID,
		"resource_type": f.ResourceType,
		"savings":       savings,
		"monthly_cost":  monthly,
		"auto_fixable":  f.AutoFixable,
		"metadata":      meta,
	}
}
