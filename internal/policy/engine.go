package policy

import (
	"context"
	"errors"
	"fmt"

	"asd_commerce/internal/domain"
)

var ErrUnknownAgentType = errors.New("unknown agent type")

// Rules maps an agent to the agents it may hand follow-up work to.
type Rules map[domain.AgentType][]domain.AgentType

func DefaultRules() Rules {
	return Rules{
		domain.AgentTypeProduct: {domain.AgentTypeSales},
	}
}

type Engine struct {
	allowed map[domain.AgentType]map[domain.AgentType]struct{}
}

func New(rules Rules) *Engine {
	allowed := make(map[domain.AgentType]map[domain.AgentType]struct{}, len(rules))
	for from, targets := range rules {
		set := make(map[domain.AgentType]struct{}, len(targets))
		for _, to := range targets {
			set[to] = struct{}{}
		}
		allowed[from] = set
	}
	return &Engine{allowed: allowed}
}

// ParseRules converts the string form used in config files. Unknown agent
// names are rejected so a typo does not silently disable delegation.
func ParseRules(raw map[string][]string) (Rules, error) {
	rules := make(Rules, len(raw))
	for from, targets := range raw {
		fromType, ok := domain.ParseAgentType(from)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAgentType, from)
		}
		for _, to := range targets {
			toType, ok := domain.ParseAgentType(to)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownAgentType, to)
			}
			rules[fromType] = append(rules[fromType], toType)
		}
	}
	return rules, nil
}

func (e *Engine) CanDelegate(_ context.Context, from, to domain.AgentType) (bool, string, error) {
	if !from.Valid() {
		return false, "", fmt.Errorf("%w: %q", ErrUnknownAgentType, from)
	}
	if !to.Valid() {
		return false, "", fmt.Errorf("%w: %q", ErrUnknownAgentType, to)
	}
	if from == to {
		return true, "agent keeps work for itself", nil
	}
	if _, ok := e.allowed[from][to]; ok {
		return true, fmt.Sprintf("%s may delegate to %s", from, to), nil
	}
	return false, fmt.Sprintf("no delegation rule from %s to %s", from, to), nil
}
