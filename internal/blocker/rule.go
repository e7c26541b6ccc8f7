package blocker

import (
	"fmt"

	"github.com/bnema/webview-content-blocker/internal/models"
)

// Rule is an immutable (trigger, action) pair
type Rule struct {
	Trigger *Trigger
	Action  Action
}

// NewRule compiles a single rule definition
func NewRule(def models.RuleDefinition) (*Rule, error) {
	trigger, err := NewTrigger(def.Trigger)
	if err != nil {
		return nil, fmt.Errorf("trigger: %w", err)
	}
	action, err := NewAction(def.Action)
	if err != nil {
		return nil, fmt.Errorf("action: %w", err)
	}
	return &Rule{Trigger: trigger, Action: action}, nil
}

// CompileRules compiles defs in order and stops at the first invalid rule
func CompileRules(defs []models.RuleDefinition) ([]*Rule, error) {
	rules := make([]*Rule, 0, len(defs))
	for i, def := range defs {
		r, err := NewRule(def)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Definition converts the rule back to its payload form
func (r *Rule) Definition() models.RuleDefinition {
	return models.RuleDefinition{
		Trigger: r.Trigger.Definition(),
		Action:  r.Action.Definition(),
	}
}
