// Package rules holds the integrity rules the scanner runs against each site.
// Every business module contributes exactly one Rule; the Registry is closed over
// models.Module so dispatch never depends on free-form strings.
package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/Bruce-k901/My-App-sub010/internal/models"
	"github.com/google/uuid"
)

// Evaluation is what one rule produced for one site. Errors describe checks that could
// not run; Findings holds whatever the remaining checks found.
type Evaluation struct {
	Findings []models.Finding
	Errors   []string
}

// Rule inspects one module's records for one site.
// Evaluate must not panic or fail for data-shape problems; it reports them in Errors.
type Rule interface {
	Module() models.Module
	Evaluate(ctx context.Context, siteID uuid.UUID) Evaluation
}

// Registry maps each module to its rule. It is safe for concurrent reads.
type Registry struct {
	mu    sync.RWMutex
	rules map[models.Module]Rule
	order []models.Module
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[models.Module]Rule)}
}

// Register adds a rule. Registering a second rule for the same module is an error.
func (r *Registry) Register(rule Rule) error {
	if rule == nil {
		return fmt.Errorf("rule cannot be nil")
	}
	m := rule.Module()
	if m == "" {
		return fmt.Errorf("rule module cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[m]; exists {
		return fmt.Errorf("module %q is already registered", m)
	}
	r.rules[m] = rule
	r.order = append(r.order, m)
	return nil
}

// Get returns the rule for a module.
func (r *Registry) Get(m models.Module) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[m]
	return rule, ok
}

// Rules returns every rule in registration order.
func (r *Registry) Rules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, 0, len(r.order))
	for _, m := range r.order {
		out = append(out, r.rules[m])
	}
	return out
}

// Modules returns the registered modules in registration order.
func (r *Registry) Modules() []models.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Module(nil), r.order...)
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
