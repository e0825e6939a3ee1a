// Package effects is the boundary between the rule engine and the
// presentation layer. The engine fires a rule name; whatever the page
// does in response (reordering sections, recoloring, revealing content)
// is registered here as an opaque callback.
package effects

import (
	"sync"

	"go.uber.org/zap"
)

// Observer is notified of every fired rule regardless of which callbacks
// are registered for it. The websocket bridge uses this to push evolution
// frames to connected pages.
type Observer func(rule, description string)

// Registry maps rule names to zero-argument callbacks. It knows nothing
// about what a callback mutates; it only guarantees that a misbehaving
// callback cannot take down rule evaluation.
type Registry struct {
	mu        sync.RWMutex
	callbacks map[string][]func()
	fallback  func(rule string)
	observers []Observer
	logger    *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		callbacks: make(map[string][]func()),
		logger:    logger,
	}
}

// Register attaches a callback to a rule name. Multiple callbacks per
// rule are invoked in registration order.
func (r *Registry) Register(rule string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[rule] = append(r.callbacks[rule], fn)
}

// RegisterFallback sets the handler invoked for rules that have no
// registered callback. At most one fallback; later calls replace it.
func (r *Registry) RegisterFallback(fn func(rule string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = fn
}

// LoggingFallback returns a fallback handler that records unhandled rule
// fires at info level. Useful in headless deployments where no page is
// attached to act on the rule.
func LoggingFallback(logger *zap.Logger) func(rule string) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(rule string) {
		logger.Info("rule fired with no registered effect", zap.String("rule", rule))
	}
}

// Observe attaches an observer that sees every fire.
func (r *Registry) Observe(obs Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, obs)
}

// Fire invokes the callbacks registered for the rule, then the observers.
// A rule with no callbacks goes to the fallback handler if one is set,
// and still notifies observers either way. Panics are recovered and logged.
func (r *Registry) Fire(rule, description string) {
	r.mu.RLock()
	callbacks := make([]func(), len(r.callbacks[rule]))
	copy(callbacks, r.callbacks[rule])
	fallback := r.fallback
	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	r.mu.RUnlock()

	if len(callbacks) == 0 && fallback != nil {
		r.invoke(rule, func() { fallback(rule) })
	}
	for _, fn := range callbacks {
		r.invoke(rule, fn)
	}
	for _, obs := range observers {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("effect observer panic", zap.String("rule", rule), zap.Any("panic", rec))
				}
			}()
			obs(rule, description)
		}()
	}
}

func (r *Registry) invoke(rule string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("effect callback panic", zap.String("rule", rule), zap.Any("panic", rec))
		}
	}()
	fn()
}
