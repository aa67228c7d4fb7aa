package app

import (
	"fmt"
	"sync"

	"github.com/bossjones/boss-bot/internal/domain"
)

// StrategyRegistry holds the registered download strategies in registration
// order. Matching walks the list and returns the first strategy that claims
// the URL, so more specific strategies must be registered before the generic
// fallback.
type StrategyRegistry struct {
	mu         sync.RWMutex
	strategies []domain.Strategy
	byName     map[string]domain.Strategy
}

// NewStrategyRegistry creates an empty strategy registry
func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{
		byName: make(map[string]domain.Strategy),
	}
}

// Register adds a strategy to the registry. Registering two strategies with
// the same name is an error.
func (r *StrategyRegistry) Register(s domain.Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("strategy %q already registered", name)
	}
	r.strategies = append(r.strategies, s)
	r.byName[name] = s
	return nil
}

// Match returns the first registered strategy that supports the URL, or nil
// when none claims it
func (r *StrategyRegistry) Match(url string) domain.Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.strategies {
		if s.Supports(url) {
			return s
		}
	}
	return nil
}

// ByName looks up a strategy by its name
func (r *StrategyRegistry) ByName(name string) (domain.Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byName[name]
	return s, ok
}

// Names returns the registered strategy names in registration order
func (r *StrategyRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.strategies))
	for _, s := range r.strategies {
		names = append(names, s.Name())
	}
	return names
}
