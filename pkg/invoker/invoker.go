// Package invoker defines the contract between generated types and the
// transport that performs remote operations.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownOperation is returned when an invoker has no operation by the requested name
var ErrUnknownOperation = errors.New("unknown operation")

// Param describes one parameter an operation expects
type Param struct {
	// Name is the local spelling of the parameter
	Name string
	// APIName is the wire name passed to Invoke
	APIName string
	// Required reports whether the operation rejects calls without it
	Required bool
	// Type is a value tag such as "string", "integer" or "structure"
	Type string
}

// Invoker performs remote operations
type Invoker interface {
	// ExpectedParams describes op's parameters without a network call.
	// Unknown operations return an error wrapping ErrUnknownOperation.
	ExpectedParams(op string) ([]Param, error)
	// Invoke performs op with wire-keyed params and returns a wire-keyed result
	Invoke(ctx context.Context, op string, params map[string]any) (map[string]any, error)
}

// UnknownOperation builds the error invokers return for op
func UnknownOperation(op string) error {
	return fmt.Errorf("%w: %s", ErrUnknownOperation, op)
}

// CallFunc handles one operation of a Static invoker
type CallFunc func(ctx context.Context, params map[string]any) (map[string]any, error)

// Call records one invocation made through a Static invoker
type Call struct {
	Operation string
	Params    map[string]any
}

type staticOperation struct {
	params []Param
	fn     CallFunc
}

// Static is an in-process invoker built from a table of operations. It
// records every call, which makes it the usual invoker in tests and for
// offline exploration from the CLI.
type Static struct {
	mu    sync.Mutex
	ops   map[string]staticOperation
	calls []Call
}

// NewStatic creates an empty Static invoker
func NewStatic() *Static {
	return &Static{ops: make(map[string]staticOperation)}
}

// Handle registers op with its expected params. A nil fn returns an empty result.
func (s *Static) Handle(op string, params []Param, fn CallFunc) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops[op] = staticOperation{params: params, fn: fn}
	return s
}

// Operations lists the registered operation names
func (s *Static) Operations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.ops))
	for name := range s.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExpectedParams returns a copy of the params registered for op
func (s *Static) ExpectedParams(op string) ([]Param, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.ops[op]
	if !ok {
		return nil, UnknownOperation(op)
	}
	return append([]Param(nil), entry.params...), nil
}

// Invoke records the call and runs the registered handler
func (s *Static) Invoke(ctx context.Context, op string, params map[string]any) (map[string]any, error) {
	s.mu.Lock()
	entry, ok := s.ops[op]
	recorded := make(map[string]any, len(params))
	for k, v := range params {
		recorded[k] = v
	}
	s.calls = append(s.calls, Call{Operation: op, Params: recorded})
	s.mu.Unlock()

	if !ok {
		return nil, UnknownOperation(op)
	}
	if entry.fn == nil {
		return map[string]any{}, nil
	}
	return entry.fn(ctx, params)
}

// Calls returns the recorded invocations in order
func (s *Static) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Reset forgets recorded calls
func (s *Static) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Reply returns a CallFunc that always answers with result
func Reply(result map[string]any) CallFunc {
	return func(context.Context, map[string]any) (map[string]any, error) {
		out := make(map[string]any, len(result))
		for k, v := range result {
			out[k] = v
		}
		return out, nil
	}
}

// Fail returns a CallFunc that always fails with err
func Fail(err error) CallFunc {
	return func(context.Context, map[string]any) (map[string]any, error) {
		return nil, err
	}
}
