package resources

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/dynres/internal/naming"
	"github.com/conduit-lang/dynres/pkg/invoker"
	"github.com/conduit-lang/dynres/pkg/metadata"
)

// Type is the shape of a generated resource or collection: its field,
// method and relation tables. A Type is immutable once built and shared by
// every instance created from it.
type Type struct {
	service      string
	name         string
	kind         metadata.Kind
	apiVersion   string
	resourceType string

	fields      []*Field
	fieldIndex  map[string]*Field
	wireIndex   map[string][]*Field
	identifiers []*Field

	methods map[string]*Method
	custom  map[string]MethodFunc

	relations map[string]*Relation

	hooks      *Hooks
	session    *Session
	transcoder naming.Transcoder
	logger     *zap.Logger
}

// Service returns the service the type belongs to
func (t *Type) Service() string { return t.service }

// Name returns the type name
func (t *Type) Name() string { return t.name }

// Kind returns resource or collection
func (t *Type) Kind() metadata.Kind { return t.kind }

// APIVersion returns the version of the document the type was built from
func (t *Type) APIVersion() string { return t.apiVersion }

// ResourceType returns the associated resource type name of a collection
func (t *Type) ResourceType() string { return t.resourceType }

// Fields returns identifiers followed by the other fields
func (t *Type) Fields() []*Field {
	return append([]*Field(nil), t.fields...)
}

// Field looks up a field by local name
func (t *Type) Field(name string) (*Field, bool) {
	f, ok := t.fieldIndex[name]
	return f, ok
}

// FieldsByWire returns the fields bound to a wire name
func (t *Type) FieldsByWire(apiName string) []*Field {
	return t.wireIndex[apiName]
}

// Identifiers returns the identifier fields
func (t *Type) Identifiers() []*Field {
	return append([]*Field(nil), t.identifiers...)
}

// Methods returns the declared methods sorted by name
func (t *Type) Methods() []*Method {
	out := make([]*Method, 0, len(t.methods))
	for _, m := range t.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Method looks up a declared method by local name
func (t *Type) Method(name string) (*Method, bool) {
	m, ok := t.methods[name]
	return m, ok
}

// MethodNames lists declared and hand-written method names
func (t *Type) MethodNames() []string {
	seen := make(map[string]bool)
	for name := range t.methods {
		seen[name] = true
	}
	for name := range t.custom {
		seen[name] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Relations returns the declared relations sorted by name
func (t *Type) Relations() []*Relation {
	out := make([]*Relation, 0, len(t.relations))
	for _, r := range t.relations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Relation looks up a relation by local name
func (t *Type) Relation(name string) (*Relation, bool) {
	r, ok := t.relations[name]
	return r, ok
}

// Hooks returns the hooks attached to the type
func (t *Type) Hooks() *Hooks { return t.hooks }

// NewResource creates a resource of this type from local-keyed data
func (t *Type) NewResource(inv invoker.Invoker, data map[string]any) (*Resource, error) {
	if t.kind != metadata.KindResource {
		return nil, fmt.Errorf("%s: %w: not a resource type", t.name, ErrWrongKind)
	}
	r := newResource(t, inv)
	r.load(data)
	return r, nil
}

// NewCollection creates a collection of this type from local-keyed data
func (t *Type) NewCollection(inv invoker.Invoker, data map[string]any) (*Collection, error) {
	if t.kind != metadata.KindCollection {
		return nil, fmt.Errorf("%s: %w: not a collection type", t.name, ErrWrongKind)
	}
	c := newCollection(t, inv)
	c.load(data)
	return c, nil
}

// New creates an instance of whichever kind the type is
func (t *Type) New(inv invoker.Invoker, data map[string]any) Instance {
	if t.kind == metadata.KindCollection {
		c := newCollection(t, inv)
		c.load(data)
		return c
	}
	r := newResource(t, inv)
	r.load(data)
	return r
}

// Call runs a class method or hand-written method without an instance
func (t *Type) Call(ctx context.Context, inv invoker.Invoker, method string, args map[string]any) (any, error) {
	if m, ok := t.methods[method]; ok && m.kind != MethodClass {
		if _, custom := t.custom[method]; !custom {
			return nil, fmt.Errorf("%s.%s: %w: %s method needs an instance", t.name, method, ErrWrongKind, m.kind)
		}
	}
	return t.call(ctx, nil, inv, method, args)
}

func (t *Type) call(ctx context.Context, self Instance, inv invoker.Invoker, method string, args map[string]any) (any, error) {
	if fn, ok := t.custom[method]; ok {
		return fn(ctx, self, args)
	}
	if m, ok := t.methods[method]; ok {
		return m.Invoke(ctx, self, inv, args)
	}
	return nil, &UnknownMethodError{Type: t.name, Method: method}
}

// Describe renders help text for the type
func (t *Type) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s %s, api %s)\n", t.name, t.service, t.kind, t.apiVersion)
	if t.resourceType != "" {
		fmt.Fprintf(&b, "  builds: %s\n", t.resourceType)
	}

	if len(t.fields) > 0 {
		b.WriteString("  fields:\n")
		for _, f := range t.fields {
			var flags []string
			if f.identifier {
				flags = append(flags, "identifier")
			}
			if f.required {
				flags = append(flags, "required")
			}
			if f.inherited {
				flags = append(flags, "inherited")
			}
			line := fmt.Sprintf("    %s <- %s", f.name, f.apiName)
			if f.valueType != "" {
				line += " " + f.valueType
			}
			if len(flags) > 0 {
				line += " [" + strings.Join(flags, ", ") + "]"
			}
			b.WriteString(line + "\n")
		}
	}

	if names := t.MethodNames(); len(names) > 0 {
		b.WriteString("  methods:\n")
		for _, name := range names {
			m, ok := t.methods[name]
			if !ok {
				fmt.Fprintf(&b, "    %s (custom)\n", name)
				continue
			}
			fmt.Fprintf(&b, "    %s -> %s (%s)", name, m.apiName, m.kind)
			if m.docs != "" {
				fmt.Fprintf(&b, ": %s", m.docs)
			}
			b.WriteString("\n")
		}
	}

	if rels := t.Relations(); len(rels) > 0 {
		b.WriteString("  relations:\n")
		for _, r := range rels {
			fmt.Fprintf(&b, "    %s -> %s %s (%s)\n", r.name, r.class, r.classType, r.relType)
		}
	}
	return b.String()
}

func (t *Type) String() string {
	return fmt.Sprintf("%s/%s", t.service, t.name)
}
