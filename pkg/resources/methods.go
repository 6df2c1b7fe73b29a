package resources

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/dynres/pkg/invoker"
	"github.com/conduit-lang/dynres/pkg/metadata"
)

// MethodKind selects how a method binds to its owning type
type MethodKind = metadata.MethodKind

// Method kinds
const (
	MethodInstance   = metadata.MethodInstance
	MethodClass      = metadata.MethodClass
	MethodCollection = metadata.MethodCollection
)

// Method binds one remote operation to a type
type Method struct {
	kind      MethodKind
	apiName   string
	defaults  map[string]any
	name      string
	owner     *Type
	resultKey string
	returns   string
	required  map[string]bool
	docs      string
}

// NewMethod creates an unattached method for the wire operation apiName.
// defaults are applied to every call before explicit arguments.
func NewMethod(kind MethodKind, apiName string, defaults map[string]any) *Method {
	copied := make(map[string]any, len(defaults))
	for k, v := range defaults {
		copied[k] = v
	}
	return &Method{
		kind:     kind,
		apiName:  apiName,
		defaults: copied,
		required: make(map[string]bool),
	}
}

func newMethodFromDefinition(def *metadata.OperationDefinition) *Method {
	m := NewMethod(def.Kind, def.APIName, def.Defaults)
	m.resultKey = def.ResultKey
	m.returns = def.Returns
	m.docs = def.Docs
	for wire, override := range def.Params {
		if override != nil && override.Required != nil {
			m.required[wire] = *override.Required
		}
	}
	return m
}

// Attach binds the method to t under the local name. A method attaches to
// exactly one type.
func (m *Method) Attach(t *Type, name string) error {
	if m.owner != nil {
		if m.owner == t && m.name == name {
			return nil
		}
		return fmt.Errorf("%s: %w to %s.%s", m.apiName, ErrAlreadyAttached, m.owner.name, m.name)
	}
	m.owner = t
	m.name = name
	return nil
}

// Name returns the local method name, empty until attached
func (m *Method) Name() string { return m.name }

// APIName returns the wire operation name
func (m *Method) APIName() string { return m.apiName }

// Kind returns the binding kind
func (m *Method) Kind() MethodKind { return m.kind }

// Owner returns the type the method is attached to, or nil
func (m *Method) Owner() *Type { return m.owner }

// Docs returns the help text declared in metadata
func (m *Method) Docs() string { return m.docs }

// ResultKey returns the dotted path unwrapped from results
func (m *Method) ResultKey() string { return m.resultKey }

// Returns reports how collection results are shaped into resources
func (m *Method) Returns() string { return m.returns }

// Defaults returns a copy of the pre-bound parameters
func (m *Method) Defaults() map[string]any {
	out := make(map[string]any, len(m.defaults))
	for k, v := range m.defaults {
		out[k] = v
	}
	return out
}

// Invoke assembles parameters, validates them, calls the operation and
// binds the result. self is the bound resource or collection; class methods
// ignore it and may be passed nil.
func (m *Method) Invoke(ctx context.Context, self Instance, inv invoker.Invoker, args map[string]any) (any, error) {
	t := m.owner
	if t == nil {
		return nil, &NoResourceAttachedError{Operation: m.apiName}
	}

	if m.kind == MethodClass {
		self = nil
	} else if self == nil {
		return nil, fmt.Errorf("%s.%s: %w: %s method needs an instance", t.name, m.name, ErrWrongKind, m.kind)
	}

	expected, err := inv.ExpectedParams(m.apiName)
	if err != nil {
		if errors.Is(err, invoker.ErrUnknownOperation) {
			return nil, &NoSuchRemoteOperationError{
				Service:   t.service,
				Type:      t.name,
				Method:    m.name,
				Operation: m.apiName,
				Err:       err,
			}
		}
		return nil, err
	}

	params := m.Defaults()
	explicit, err := m.resolveArgs(ctx, self, expected, args)
	if err != nil {
		return nil, err
	}
	for k, v := range explicit {
		params[k] = v
	}

	if self != nil {
		if err := m.overlayFields(self, expected, explicit, params); err != nil {
			return nil, err
		}
	}

	if err := t.hooks.runBefore(ctx, self, m.name, m.apiName, params); err != nil {
		return nil, err
	}

	if err := m.validate(self, expected, params); err != nil {
		return nil, err
	}

	t.logger.Debug("invoking operation",
		zap.String("service", t.service),
		zap.String("type", t.name),
		zap.String("method", m.name),
		zap.String("operation", m.apiName),
		zap.Int("params", len(params)),
	)

	raw, err := inv.Invoke(ctx, m.apiName, params)
	if err != nil {
		return nil, err
	}

	result, err := m.bindResult(ctx, self, params, raw)
	if err != nil {
		return nil, err
	}

	return t.hooks.runAfter(ctx, self, m.name, m.apiName, result)
}

// resolveArgs maps call-site keys to wire names. Keys may be local field
// names, wire names, or local spellings of expected parameters; anything
// else passes through as given.
func (m *Method) resolveArgs(ctx context.Context, self Instance, expected []invoker.Param, args map[string]any) (map[string]any, error) {
	wireNames := make(map[string]bool, len(expected))
	localNames := make(map[string]string, len(expected))
	for _, p := range expected {
		wireNames[p.APIName] = true
		if p.Name != "" {
			localNames[p.Name] = p.APIName
		}
	}

	lookups := []*Type{m.owner}
	if m.owner.kind == metadata.KindCollection && m.owner.resourceType != "" {
		if rt, err := m.owner.session.ResourceType(ctx, m.owner.service, m.owner.resourceType); err == nil {
			lookups = append(lookups, rt)
		}
	}

	out := make(map[string]any, len(args))
	for key, value := range args {
		if wireNames[key] {
			out[key] = value
			continue
		}

		if f := fieldIn(lookups, key); f != nil {
			wire, err := f.converter.ToWire(value)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: argument %s: %w", m.owner.name, m.name, key, err)
			}
			out[f.apiName] = wire
			continue
		}

		if wire, ok := localNames[key]; ok {
			out[wire] = value
			continue
		}
		if wire := m.owner.transcoder.ToWire(key); wireNames[wire] {
			out[wire] = value
			continue
		}

		out[key] = value
	}
	return out, nil
}

func fieldIn(types []*Type, name string) *Field {
	for _, t := range types {
		if f, ok := t.Field(name); ok {
			return f
		}
	}
	return nil
}

// overlayFields fills expected parameters from bound field values. Explicit
// arguments always win; unset fields are skipped so validation can name them.
func (m *Method) overlayFields(self Instance, expected []invoker.Param, explicit, params map[string]any) error {
	t := self.Type()
	for _, p := range expected {
		if _, ok := explicit[p.APIName]; ok {
			continue
		}
		for _, f := range t.FieldsByWire(p.APIName) {
			v, present, err := f.ReadWire(self)
			if errors.Is(err, ErrFieldNotSet) {
				continue
			}
			if err != nil {
				return err
			}
			if present {
				params[p.APIName] = v
				break
			}
		}
	}
	return nil
}

// validate rejects calls lacking a required parameter. A parameter is
// required when the invoker says so or a bound field of self is declared
// required; a metadata override for the operation has the last word.
func (m *Method) validate(self Instance, expected []invoker.Param, params map[string]any) error {
	seen := make(map[string]bool, len(expected))
	for _, p := range expected {
		seen[p.APIName] = true
		required := p.Required || fieldRequired(self, p.APIName)
		if override, ok := m.required[p.APIName]; ok {
			required = override
		}
		if required && params[p.APIName] == nil {
			return m.missing(p.APIName)
		}
	}

	for wire, required := range m.required {
		if required && !seen[wire] && params[wire] == nil {
			return m.missing(wire)
		}
	}
	return nil
}

func fieldRequired(self Instance, wire string) bool {
	if self == nil {
		return false
	}
	for _, f := range self.Type().FieldsByWire(wire) {
		if f.Required() {
			return true
		}
	}
	return false
}

func (m *Method) missing(param string) error {
	return &MissingParameterError{
		Type:      m.owner.name,
		Method:    m.name,
		Operation: m.apiName,
		Param:     param,
	}
}

// bindResult unwraps the result key, writes matching keys into self and
// shapes collection results into resources
func (m *Method) bindResult(ctx context.Context, self Instance, params, raw map[string]any) (any, error) {
	var result any = raw
	if m.resultKey != "" {
		result = unwrap(raw, m.resultKey)
	}

	if coll, ok := self.(*Collection); ok && m.returns != "" {
		return m.shape(ctx, coll, params, result)
	}

	if self != nil {
		if data, ok := result.(map[string]any); ok {
			if err := bindWire(self, data, true); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

func (m *Method) shape(ctx context.Context, coll *Collection, params map[string]any, result any) (any, error) {
	switch m.returns {
	case metadata.ReturnsResource:
		data, ok := result.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s.%s: result is %T, not an object", m.owner.name, m.name, result)
		}

		rt, err := coll.ResourceType(ctx)
		if err != nil {
			return nil, err
		}

		// Parameters naming resource fields fill in what the result does not echo back
		merged := make(map[string]any, len(params)+len(data))
		for k, v := range params {
			if len(rt.FieldsByWire(k)) > 0 {
				merged[k] = v
			}
		}
		for k, v := range data {
			merged[k] = v
		}
		return coll.BuildResource(ctx, merged)

	case metadata.ReturnsResources:
		if result == nil {
			return []*Resource{}, nil
		}
		items, ok := result.([]any)
		if !ok {
			return nil, fmt.Errorf("%s.%s: result is %T, not a list", m.owner.name, m.name, result)
		}

		built := make([]*Resource, 0, len(items))
		for i, item := range items {
			data, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s.%s: result element %d is %T, not an object", m.owner.name, m.name, i, item)
			}
			r, err := coll.BuildResource(ctx, data)
			if err != nil {
				return nil, err
			}
			built = append(built, r)
		}
		return built, nil

	default:
		return result, nil
	}
}

// unwrap follows a dotted path of object keys. Missing keys yield nil.
func unwrap(data map[string]any, path string) any {
	var current any = data
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[key]
	}
	return current
}
