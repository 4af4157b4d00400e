package payment

import (
	"fmt"
	"sync"

	"decision-engine/internal/models"
)

// Registry holds the registered payment operators. A policy names its
// operator; unknown names fall back to the default operator when one is set.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]Port
	defaultName string
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Port)}
}

func (r *Registry) Register(port Port) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[port.Name()] = port
	if r.defaultName == "" {
		r.defaultName = port.Name()
	}
}

func (r *Registry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultName = name
}

// Get resolves a registered operator by name.
func (r *Registry) Get(name string) (Port, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if port, ok := r.providers[name]; ok {
		return port, nil
	}
	return nil, fmt.Errorf("no payment provider registered as %q", name)
}

// ForPolicy resolves the operator that settles this policy's payouts.
func (r *Registry) ForPolicy(policy *models.Policy) (Port, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if port, ok := r.providers[policy.PaymentProvider]; ok {
		return port, nil
	}
	if port, ok := r.providers[r.defaultName]; ok {
		return port, nil
	}
	return nil, fmt.Errorf("no payment provider registered for %q and no default configured", policy.PaymentProvider)
}
