package handoff

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
)

// ErrNoAgentAvailable is returned when every configured agent is already in
// a conversation or the pool is empty.
var ErrNoAgentAvailable = errors.New("no agent available")

// SelectionStrategy picks the next agent to offer a conversation to.  busy
// reports whether an agent is already assigned; implementations must never
// return a busy agent.
type SelectionStrategy interface {
	Select(ctx context.Context, pool []string, busy func(ctx context.Context, agent string) (bool, error)) (string, error)
}

// FirstFree walks the pool in configured order and picks the first idle
// agent.  Deterministic, so early entries carry most of the load.
type FirstFree struct{}

func (FirstFree) Select(ctx context.Context, pool []string, busy func(ctx context.Context, agent string) (bool, error)) (string, error) {
	for _, agent := range pool {
		b, err := busy(ctx, agent)
		if err != nil {
			return "", err
		}
		if !b {
			return agent, nil
		}
	}
	return "", ErrNoAgentAvailable
}

// Random picks uniformly among the idle agents.
type Random struct{}

func (Random) Select(ctx context.Context, pool []string, busy func(ctx context.Context, agent string) (bool, error)) (string, error) {
	var free []string
	for _, agent := range pool {
		b, err := busy(ctx, agent)
		if err != nil {
			return "", err
		}
		if !b {
			free = append(free, agent)
		}
	}
	if len(free) == 0 {
		return "", ErrNoAgentAvailable
	}
	return free[rand.Intn(len(free))], nil
}

// StrategyByName maps a configuration value to a strategy.
func StrategyByName(name string) (SelectionStrategy, error) {
	switch name {
	case "", "first_free":
		return FirstFree{}, nil
	case "random":
		return Random{}, nil
	default:
		return nil, fmt.Errorf("unknown selection strategy %q", name)
	}
}
