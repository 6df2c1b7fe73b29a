package resources

import (
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cast"

	"github.com/conduit-lang/dynres/internal/naming"
	"github.com/conduit-lang/dynres/pkg/metadata"
)

// Converter transforms a field value between its wire and local forms
type Converter interface {
	ToLocal(wire any) (any, error)
	ToWire(local any) (any, error)
}

// ConverterFuncs adapts a pair of functions to Converter. A nil function
// passes values through.
type ConverterFuncs struct {
	Local func(any) (any, error)
	Wire  func(any) (any, error)
}

func (c ConverterFuncs) ToLocal(wire any) (any, error) {
	if c.Local == nil || wire == nil {
		return wire, nil
	}
	return c.Local(wire)
}

func (c ConverterFuncs) ToWire(local any) (any, error) {
	if c.Wire == nil || local == nil {
		return local, nil
	}
	return c.Wire(local)
}

// Identity passes values through unchanged
var Identity Converter = ConverterFuncs{}

var builtinConverters = map[string]Converter{
	"string": ConverterFuncs{
		Local: func(v any) (any, error) { return cast.ToStringE(v) },
		Wire:  func(v any) (any, error) { return cast.ToStringE(v) },
	},
	"integer": ConverterFuncs{
		Local: func(v any) (any, error) { return cast.ToInt64E(v) },
		Wire:  func(v any) (any, error) { return cast.ToInt64E(v) },
	},
	"boolean": ConverterFuncs{
		Local: func(v any) (any, error) { return cast.ToBoolE(v) },
		Wire:  func(v any) (any, error) { return cast.ToBoolE(v) },
	},
	"float": ConverterFuncs{
		Local: func(v any) (any, error) { return cast.ToFloat64E(v) },
		Wire:  func(v any) (any, error) { return cast.ToFloat64E(v) },
	},
	"timestamp": ConverterFuncs{
		Local: func(v any) (any, error) { return cast.ToTimeE(v) },
		Wire: func(v any) (any, error) {
			t, err := cast.ToTimeE(v)
			if err != nil {
				return nil, err
			}
			return t.UTC().Format(time.RFC3339Nano), nil
		},
	},
}

// ConverterFor returns the built-in converter for a metadata value tag.
// Unknown and empty tags get Identity.
func ConverterFor(tag string) Converter {
	if c, ok := builtinConverters[tag]; ok {
		return c
	}
	return Identity
}

// ConverterForDefinition picks the converter for a field definition. Nested
// structure and list values rename their keys with tc; scalar tags resolve
// as in ConverterFor.
func ConverterForDefinition(def metadata.FieldDefinition, tc naming.Transcoder) Converter {
	if tc == nil {
		tc = naming.Default{}
	}
	switch def.Type {
	case metadata.ValueStructure:
		return NewStructureConverter(def.Members, tc)
	case metadata.ValueList:
		return &ListConverter{Element: NewStructureConverter(def.Members, tc)}
	default:
		return ConverterFor(def.Type)
	}
}

type member struct {
	name    string
	apiName string
	conv    Converter
}

// StructureConverter maps a nested wire structure to a map keyed by local
// names. Declared members convert through their own converters; any other
// key is renamed by the transcoder, recursively.
type StructureConverter struct {
	byWire     map[string]member
	byLocal    map[string]member
	transcoder naming.Transcoder
}

// NewStructureConverter creates a converter for a structure with members
func NewStructureConverter(members []metadata.FieldDefinition, tc naming.Transcoder) *StructureConverter {
	c := &StructureConverter{
		byWire:     make(map[string]member, len(members)),
		byLocal:    make(map[string]member, len(members)),
		transcoder: tc,
	}
	for _, def := range members {
		m := member{name: def.Name, apiName: def.APIName, conv: ConverterForDefinition(def, tc)}
		c.byWire[m.apiName] = m
		c.byLocal[m.name] = m
	}
	return c
}

func (c *StructureConverter) ToLocal(wire any) (any, error) {
	if wire == nil {
		return nil, nil
	}
	in, err := cast.ToStringMapE(wire)
	if err != nil {
		return nil, fmt.Errorf("structure: %w", err)
	}

	out := make(map[string]any, len(in))
	for key, value := range in {
		if m, ok := c.byWire[key]; ok {
			local, err := m.conv.ToLocal(value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", m.name, err)
			}
			out[m.name] = local
			continue
		}
		out[c.transcoder.ToLocal(key)] = renameKeys(value, c.transcoder.ToLocal)
	}
	return out, nil
}

func (c *StructureConverter) ToWire(local any) (any, error) {
	if local == nil {
		return nil, nil
	}
	in, err := cast.ToStringMapE(local)
	if err != nil {
		return nil, fmt.Errorf("structure: %w", err)
	}

	out := make(map[string]any, len(in))
	for key, value := range in {
		if m, ok := c.byLocal[key]; ok {
			wire, err := m.conv.ToWire(value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", m.name, err)
			}
			out[m.apiName] = wire
			continue
		}
		out[c.transcoder.ToWire(key)] = renameKeys(value, c.transcoder.ToWire)
	}
	return out, nil
}

// ListConverter converts every element of a list value with Element
type ListConverter struct {
	Element Converter
}

func (c *ListConverter) ToLocal(wire any) (any, error) {
	return c.each(wire, c.Element.ToLocal)
}

func (c *ListConverter) ToWire(local any) (any, error) {
	return c.each(local, c.Element.ToWire)
}

func (c *ListConverter) each(value any, convert func(any) (any, error)) (any, error) {
	if value == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("list: unable to convert %T", value)
	}

	out := make([]any, rv.Len())
	for i := range out {
		elem := rv.Index(i).Interface()
		if _, isMap := elem.(map[string]any); !isMap {
			out[i] = elem
			continue
		}
		v, err := convert(elem)
		if err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// renameKeys rewrites the keys of nested maps with rename, descending into lists
func renameKeys(value any, rename func(string) string) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			out[rename(key)] = renameKeys(inner, rename)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = renameKeys(inner, rename)
		}
		return out
	default:
		return value
	}
}

