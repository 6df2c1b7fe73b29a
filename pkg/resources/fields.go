package resources

import (
	"fmt"

	"github.com/conduit-lang/dynres/pkg/metadata"
)

// Field binds one attribute of a type to its wire name. Fields are shared by
// every instance of their type and never change after construction.
type Field struct {
	name       string
	apiName    string
	required   bool
	identifier bool
	inherited  bool
	valueType  string
	converter  Converter
	owner      string
}

// NewField creates a field from its definition. A nil converter selects the
// built-in converter for the definition's value type.
func NewField(def metadata.FieldDefinition, identifier bool, conv Converter) *Field {
	if conv == nil {
		conv = ConverterForDefinition(def, nil)
	}
	return &Field{
		name:       def.Name,
		apiName:    def.APIName,
		required:   def.Required,
		identifier: identifier,
		inherited:  def.Inherited,
		valueType:  def.Type,
		converter:  conv,
	}
}

// Name returns the local name
func (f *Field) Name() string { return f.name }

// APIName returns the wire name
func (f *Field) APIName() string { return f.apiName }

// Required reports whether ReadWire fails when the field is unset
func (f *Field) Required() bool { return f.required }

// Identifier reports whether the field addresses the remote entity
func (f *Field) Identifier() bool { return f.identifier }

// Inherited reports whether a parent seeds this identifier in one-to-many relations
func (f *Field) Inherited() bool { return f.inherited }

// ValueType returns the metadata value tag
func (f *Field) ValueType() string { return f.valueType }

func (f *Field) notSet() error {
	return &FieldNotSetError{Type: f.owner, Field: f.name}
}

// ReadLocal returns the stored local value
func (f *Field) ReadLocal(obj Instance) (any, error) {
	v, ok := obj.state().data[f.name]
	if !ok {
		return nil, f.notSet()
	}
	return v, nil
}

// WriteLocal stores a local value
func (f *Field) WriteLocal(obj Instance, value any) {
	st := obj.state()
	st.data[f.name] = value
	if f.identifier {
		st.invalidateRelations()
	}
}

// ReadWire returns the value in wire form. An unset field reports
// present=false, or a *FieldNotSetError when the field is required.
func (f *Field) ReadWire(obj Instance) (value any, present bool, err error) {
	local, ok := obj.state().data[f.name]
	if !ok {
		if f.required {
			return nil, false, f.notSet()
		}
		return nil, false, nil
	}

	wire, err := f.converter.ToWire(local)
	if err != nil {
		return nil, true, fmt.Errorf("%s.%s: %w", f.owner, f.name, err)
	}
	return wire, true, nil
}

// WriteWire converts a value received from a remote result and stores it
func (f *Field) WriteWire(obj Instance, wire any) error {
	local, err := f.converter.ToLocal(wire)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", f.owner, f.name, err)
	}
	f.WriteLocal(obj, local)
	return nil
}

// Delete removes the stored value
func (f *Field) Delete(obj Instance) error {
	st := obj.state()
	if _, ok := st.data[f.name]; !ok {
		return f.notSet()
	}
	delete(st.data, f.name)
	if f.identifier {
		st.invalidateRelations()
	}
	return nil
}
