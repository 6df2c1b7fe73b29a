// Package metadata loads and caches the declarative service descriptions that
// resource and collection types are synthesized from.
package metadata

import (
	"sort"

	"github.com/conduit-lang/dynres/internal/naming"
)

// Kind distinguishes single-entity resources from collections
type Kind string

const (
	KindResource   Kind = "resource"
	KindCollection Kind = "collection"
)

// MethodKind selects how an operation binds to its owning type
type MethodKind string

const (
	// MethodInstance binds a resource instance and overlays its fields
	MethodInstance MethodKind = "instance"
	// MethodClass has no instance context
	MethodClass MethodKind = "class"
	// MethodCollection binds a collection and may shape results into resources
	MethodCollection MethodKind = "collection"
)

// Relation cardinalities
const (
	RelOneToOne  = "1-1"
	RelOneToMany = "1-M"
)

// Collection result shapes
const (
	ReturnsResource  = "resource"
	ReturnsResources = "resources"
)

// ServiceDescription is the loaded document for one service and API version
type ServiceDescription struct {
	Service     string                     `json:"service" yaml:"service"`
	APIVersion  string                     `json:"api_version" yaml:"api_version"`
	APIVersions []string                   `json:"api_versions,omitempty" yaml:"api_versions,omitempty"`
	Resources   map[string]*TypeDefinition `json:"resources,omitempty" yaml:"resources,omitempty"`
	Collections map[string]*TypeDefinition `json:"collections,omitempty" yaml:"collections,omitempty"`

	// Origin records where the document was loaded from
	Origin string `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// TypeDefinition declares one resource or collection
type TypeDefinition struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Kind Kind   `json:"kind,omitempty" yaml:"kind,omitempty"`

	// Resource names the associated resource type of a collection
	Resource string `json:"resource,omitempty" yaml:"resource,omitempty"`

	// APIVersions restricts the document versions this type accepts
	APIVersions []string `json:"api_versions,omitempty" yaml:"api_versions,omitempty"`

	Identifiers []FieldDefinition               `json:"identifiers,omitempty" yaml:"identifiers,omitempty"`
	Fields      []FieldDefinition               `json:"fields,omitempty" yaml:"fields,omitempty"`
	Operations  map[string]*OperationDefinition `json:"operations,omitempty" yaml:"operations,omitempty"`
	Relations   map[string]*RelationDefinition  `json:"relations,omitempty" yaml:"relations,omitempty"`
}

// FieldDefinition declares one bindable attribute
type FieldDefinition struct {
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	APIName   string `json:"api_name,omitempty" yaml:"api_name,omitempty"`
	Required  bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Inherited bool   `json:"inherited,omitempty" yaml:"inherited,omitempty"`
	Type      string `json:"type,omitempty" yaml:"type,omitempty"`

	// Members describes the nested fields of structure and list values
	Members []FieldDefinition `json:"members,omitempty" yaml:"members,omitempty"`
}

// Value tags for nested field values
const (
	ValueStructure = "structure"
	ValueList      = "list"
)

// OperationDefinition binds a local method name to a remote operation
type OperationDefinition struct {
	APIName string     `json:"api_name" yaml:"api_name"`
	Kind    MethodKind `json:"kind,omitempty" yaml:"kind,omitempty"`

	// ResultKey is a dotted path unwrapped from the raw result before binding
	ResultKey string `json:"result_key,omitempty" yaml:"result_key,omitempty"`

	// Returns shapes collection results into resource instances
	Returns string `json:"returns,omitempty" yaml:"returns,omitempty"`

	Defaults map[string]any           `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Params   map[string]*ParamOverride `json:"params,omitempty" yaml:"params,omitempty"`
	Docs     string                   `json:"docs,omitempty" yaml:"docs,omitempty"`
}

// ParamOverride adjusts what the invoker reports for one wire parameter
type ParamOverride struct {
	Required *bool `json:"required,omitempty" yaml:"required,omitempty"`
}

// RelationDefinition declares a lazily resolved reference to another type
type RelationDefinition struct {
	Class     string `json:"class" yaml:"class"`
	ClassType Kind   `json:"class_type,omitempty" yaml:"class_type,omitempty"`
	Service   string `json:"service,omitempty" yaml:"service,omitempty"`
	RelType   string `json:"rel_type" yaml:"rel_type"`
	Required  bool   `json:"required,omitempty" yaml:"required,omitempty"`

	// Seed maps target field local names to owner field local names
	Seed map[string]string `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// Type returns the definition of name for kind, or nil
func (d *ServiceDescription) Type(name string, kind Kind) *TypeDefinition {
	if d == nil {
		return nil
	}
	switch kind {
	case KindCollection:
		return d.Collections[name]
	default:
		return d.Resources[name]
	}
}

// TypeNames returns the sorted names declared for kind
func (d *ServiceDescription) TypeNames(kind Kind) []string {
	defs := d.Resources
	if kind == KindCollection {
		defs = d.Collections
	}

	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllFields returns identifiers followed by the remaining fields
func (t *TypeDefinition) AllFields() []FieldDefinition {
	all := make([]FieldDefinition, 0, len(t.Identifiers)+len(t.Fields))
	all = append(all, t.Identifiers...)
	all = append(all, t.Fields...)
	return all
}

// OperationNames returns the local operation names in sorted order
func (t *TypeDefinition) OperationNames() []string {
	names := make([]string, 0, len(t.Operations))
	for name := range t.Operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalize fills in derived names and kinds after decoding
func (d *ServiceDescription) normalize(service, version, origin string, tc naming.Transcoder) {
	if d.Service == "" {
		d.Service = service
	}
	d.APIVersion = version
	d.Origin = origin

	for name, def := range d.Resources {
		if def == nil {
			def = &TypeDefinition{}
			d.Resources[name] = def
		}
		def.normalize(name, KindResource, tc)
	}
	for name, def := range d.Collections {
		if def == nil {
			def = &TypeDefinition{}
			d.Collections[name] = def
		}
		def.normalize(name, KindCollection, tc)
	}
}

func (t *TypeDefinition) normalize(name string, kind Kind, tc naming.Transcoder) {
	t.Name = name
	t.Kind = kind

	for i := range t.Identifiers {
		t.Identifiers[i].normalize(tc)
	}
	for i := range t.Fields {
		t.Fields[i].normalize(tc)
	}

	for _, op := range t.Operations {
		if op == nil || op.Kind != "" {
			continue
		}
		if kind == KindCollection {
			op.Kind = MethodCollection
		} else {
			op.Kind = MethodInstance
		}
	}

	for _, rel := range t.Relations {
		if rel == nil {
			continue
		}
		if rel.ClassType == "" {
			rel.ClassType = KindResource
		}
		if rel.RelType == "" {
			rel.RelType = RelOneToMany
		}
	}
}

func (f *FieldDefinition) normalize(tc naming.Transcoder) {
	if f.Name == "" && f.APIName != "" {
		f.Name = tc.ToLocal(f.APIName)
	}
	if f.APIName == "" && f.Name != "" {
		f.APIName = tc.ToWire(f.Name)
	}
	for i := range f.Members {
		f.Members[i].normalize(tc)
	}
}
