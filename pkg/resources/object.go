package resources

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/conduit-lang/dynres/pkg/invoker"
)

// Instance is the surface shared by resources and collections
type Instance interface {
	// Type returns the shape the instance was built from
	Type() *Type
	// ID returns a process-local identity for logs and debugging
	ID() uuid.UUID
	// Invoker returns the invoker bound at construction
	Invoker() invoker.Invoker

	// Get reads a field by local name, falling back to ad hoc attributes
	Get(name string) (any, error)
	// Set writes a field by local name, or an ad hoc attribute
	Set(name string, value any) error
	// Delete removes a field value or ad hoc attribute
	Delete(name string) error

	// Call runs a declared or hand-written method
	Call(ctx context.Context, method string, args map[string]any) (any, error)
	// Related resolves a declared relation
	Related(ctx context.Context, name string) (Instance, error)

	// Identifiers returns the set identifier values by local name
	Identifiers() map[string]any
	// Data returns a copy of the set field values by local name
	Data() map[string]any
	// Extra returns a copy of the ad hoc attributes
	Extra() map[string]any

	state() *object
}

type relationMemo struct {
	instance Instance
	snapshot map[string]any
}

// object holds the per-instance state behind Resource and Collection
type object struct {
	typ   *Type
	id    uuid.UUID
	inv   invoker.Invoker
	data  map[string]any
	extra map[string]any
	memo  map[string]*relationMemo
	self  Instance
}

func newObject(t *Type, inv invoker.Invoker) *object {
	return &object{
		typ:   t,
		id:    uuid.New(),
		inv:   inv,
		data:  make(map[string]any),
		extra: make(map[string]any),
		memo:  make(map[string]*relationMemo),
	}
}

func (o *object) state() *object { return o }

func (o *object) Type() *Type { return o.typ }

func (o *object) ID() uuid.UUID { return o.id }

func (o *object) Invoker() invoker.Invoker { return o.inv }

func (o *object) Get(name string) (any, error) {
	if f, ok := o.typ.Field(name); ok {
		return f.ReadLocal(o.self)
	}
	if v, ok := o.extra[name]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%s: %w %q", o.typ.name, ErrUnknownAttribute, name)
}

func (o *object) Set(name string, value any) error {
	if f, ok := o.typ.Field(name); ok {
		f.WriteLocal(o.self, value)
		return nil
	}
	o.extra[name] = value
	return nil
}

func (o *object) Delete(name string) error {
	if f, ok := o.typ.Field(name); ok {
		return f.Delete(o.self)
	}
	if _, ok := o.extra[name]; !ok {
		return fmt.Errorf("%s: %w %q", o.typ.name, ErrUnknownAttribute, name)
	}
	delete(o.extra, name)
	return nil
}

func (o *object) Call(ctx context.Context, method string, args map[string]any) (any, error) {
	return o.typ.call(ctx, o.self, o.inv, method, args)
}

func (o *object) Related(ctx context.Context, name string) (Instance, error) {
	return o.typ.session.resolver.Resolve(ctx, o.self, name)
}

func (o *object) Identifiers() map[string]any {
	ids := make(map[string]any)
	for _, f := range o.typ.identifiers {
		if v, ok := o.data[f.name]; ok {
			ids[f.name] = v
		}
	}
	return ids
}

func (o *object) Data() map[string]any {
	out := make(map[string]any, len(o.data))
	for k, v := range o.data {
		out[k] = v
	}
	return out
}

func (o *object) Extra() map[string]any {
	out := make(map[string]any, len(o.extra))
	for k, v := range o.extra {
		out[k] = v
	}
	return out
}

func (o *object) invalidateRelations() {
	if len(o.memo) > 0 {
		o.memo = make(map[string]*relationMemo)
	}
}

// load writes local-keyed data through Set
func (o *object) load(data map[string]any) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_ = o.Set(k, data[k])
	}
}

func (o *object) String() string {
	ids := o.Identifiers()
	names := make([]string, 0, len(ids))
	for k := range ids {
		names = append(names, k)
	}
	sort.Strings(names)

	s := o.typ.name + "("
	for i, k := range names {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%v", k, ids[k])
	}
	return s + ")"
}
