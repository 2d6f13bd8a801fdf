package notifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/stocktrack/internal/core"
	"go.uber.org/zap"
)

// Registry fans an alert out to every registered notifier. It is itself a
// Notifier: Send fails only when no notifier delivered the alert.
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	logger    *zap.Logger
}

// NewRegistry creates a new notifier registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		notifiers: make(map[string]Notifier),
		logger:    logger,
	}
}

func (r *Registry) Name() string { return "registry" }

// Register adds a notifier to the registry
func (r *Registry) Register(n Notifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := n.Name()
	if _, exists := r.notifiers[name]; exists {
		return fmt.Errorf("notifier %s already registered", name)
	}

	r.notifiers[name] = n
	return nil
}

// Get retrieves a notifier by name
func (r *Registry) Get(name string) (Notifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, exists := r.notifiers[name]
	if !exists {
		return nil, fmt.Errorf("notifier %s not found", name)
	}
	return n, nil
}

// Names returns the registered notifier names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.notifiers))
	for name := range r.notifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered notifiers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.notifiers)
}

// NotifyAll sends an alert to all registered notifiers and returns the
// failures by notifier name
func (r *Registry) NotifyAll(ctx context.Context, alert core.Alert) map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	errs := make(map[string]error)
	for name, n := range r.notifiers {
		if err := n.Send(ctx, alert); err != nil {
			errs[name] = err
		}
	}
	return errs
}

// Send implements Notifier.
func (r *Registry) Send(ctx context.Context, alert core.Alert) error {
	total := r.Len()
	if total == 0 {
		return core.WrapError(core.ErrNotifierFailed, errors.New("no notifiers registered"))
	}

	errs := r.NotifyAll(ctx, alert)
	for name, err := range errs {
		r.logger.Error("notifier failed",
			zap.String("notifier", name),
			zap.String("symbol", alert.Symbol),
			zap.Error(err),
		)
	}

	if len(errs) == total {
		joined := make([]error, 0, len(errs))
		for _, err := range errs {
			joined = append(joined, err)
		}
		return core.WrapError(core.ErrNotifierFailed, errors.Join(joined...))
	}
	return nil
}
