package blocker

import (
	"fmt"

	"github.com/andybalholm/cascadia"

	"github.com/bnema/webview-content-blocker/internal/models"
)

// Action is the effect half of a rule
type Action struct {
	Type     models.ActionType
	Selector string
}

// NewAction validates def
func NewAction(def models.ActionDefinition) (Action, error) {
	switch def.Type {
	case models.ActionBlock, models.ActionMakeHTTPS:
		return Action{Type: def.Type}, nil
	case models.ActionCSSDisplayNone:
		if def.Selector == "" {
			return Action{}, ErrMissingSelector
		}
		if _, err := cascadia.ParseGroup(def.Selector); err != nil {
			return Action{}, fmt.Errorf("%w %q: %v", ErrInvalidSelector, def.Selector, err)
		}
		return Action{Type: def.Type, Selector: def.Selector}, nil
	default:
		return Action{}, fmt.Errorf("%w: %q", ErrUnknownActionType, def.Type)
	}
}

// Definition converts the action back to its payload form
func (a Action) Definition() models.ActionDefinition {
	return models.ActionDefinition{Type: a.Type, Selector: a.Selector}
}
