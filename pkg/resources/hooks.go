package resources

import (
	"context"
	"fmt"
)

// BeforeHook adjusts assembled parameters before validation. self is nil
// for class methods.
type BeforeHook func(ctx context.Context, self Instance, method string, params map[string]any) error

// AfterHook post-processes a bound result and returns the value handed to the caller
type AfterHook func(ctx context.Context, self Instance, method string, result any) (any, error)

// MethodFunc is a hand-written method added to a generated type
type MethodFunc func(ctx context.Context, self Instance, args map[string]any) (any, error)

// Extension customizes one generated type. Hooks keyed by a local method
// name or a wire operation name apply to that method only; the All variants
// apply to every method.
type Extension struct {
	Before    map[string]BeforeHook
	BeforeAll BeforeHook
	After     map[string]AfterHook
	AfterAll  AfterHook

	// Methods adds or replaces methods by local name
	Methods map[string]MethodFunc

	// Converters replaces the converter of fields by local name
	Converters map[string]Converter
}

// Hooks holds the hooks of one type in registration order
type Hooks struct {
	before    map[string][]BeforeHook
	beforeAll []BeforeHook
	after     map[string][]AfterHook
	afterAll  []AfterHook
}

// NewHooks creates an empty hook set
func NewHooks() *Hooks {
	return &Hooks{
		before: make(map[string][]BeforeHook),
		after:  make(map[string][]AfterHook),
	}
}

// Add registers the hooks of ext
func (h *Hooks) Add(ext Extension) {
	for method, hook := range ext.Before {
		if hook != nil {
			h.before[method] = append(h.before[method], hook)
		}
	}
	if ext.BeforeAll != nil {
		h.beforeAll = append(h.beforeAll, ext.BeforeAll)
	}
	for method, hook := range ext.After {
		if hook != nil {
			h.after[method] = append(h.after[method], hook)
		}
	}
	if ext.AfterAll != nil {
		h.afterAll = append(h.afterAll, ext.AfterAll)
	}
}

// HasHooks reports whether any hook applies to a method called by any of
// names, its local name or its operation name
func (h *Hooks) HasHooks(names ...string) bool {
	if len(h.beforeAll) > 0 || len(h.afterAll) > 0 {
		return true
	}
	for _, name := range names {
		if len(h.before[name]) > 0 || len(h.after[name]) > 0 {
			return true
		}
	}
	return false
}

// specific returns the hooks registered under the local method name followed
// by those registered under the operation name
func specific[H any](hooks map[string][]H, method, operation string) []H {
	out := hooks[method]
	if operation != "" && operation != method {
		out = append(append([]H(nil), out...), hooks[operation]...)
	}
	return out
}

// runBefore runs method-specific hooks, then general ones
func (h *Hooks) runBefore(ctx context.Context, self Instance, method, operation string, params map[string]any) error {
	for _, hook := range specific(h.before, method, operation) {
		if err := hook(ctx, self, method, params); err != nil {
			return fmt.Errorf("before %s: %w", method, err)
		}
	}
	for _, hook := range h.beforeAll {
		if err := hook(ctx, self, method, params); err != nil {
			return fmt.Errorf("before %s: %w", method, err)
		}
	}
	return nil
}

// runAfter runs general hooks, then method-specific ones
func (h *Hooks) runAfter(ctx context.Context, self Instance, method, operation string, result any) (any, error) {
	var err error
	for _, hook := range h.afterAll {
		if result, err = hook(ctx, self, method, result); err != nil {
			return nil, fmt.Errorf("after %s: %w", method, err)
		}
	}
	for _, hook := range specific(h.after, method, operation) {
		if result, err = hook(ctx, self, method, result); err != nil {
			return nil, fmt.Errorf("after %s: %w", method, err)
		}
	}
	return result, nil
}
