package metadata

import (
	"errors"
	"fmt"
)

// Validate checks the structural invariants every type definition must hold
func Validate(desc *ServiceDescription) error {
	var errs []error

	for _, name := range desc.TypeNames(KindResource) {
		errs = append(errs, validateType(desc, desc.Resources[name])...)
	}
	for _, name := range desc.TypeNames(KindCollection) {
		def := desc.Collections[name]
		errs = append(errs, validateType(desc, def)...)

		if def.Resource != "" {
			if _, ok := desc.Resources[def.Resource]; !ok {
				errs = append(errs, &ValidationError{
					Service: desc.Service,
					Type:    name,
					Message: fmt.Sprintf("associated resource %q is not declared", def.Resource),
				})
			}
		}
	}

	return errors.Join(errs...)
}

func validateType(desc *ServiceDescription, def *TypeDefinition) []error {
	var errs []error
	invalid := func(err error, format string, args ...any) {
		errs = append(errs, &ValidationError{
			Service: desc.Service,
			Type:    def.Name,
			Message: fmt.Sprintf(format, args...),
			Err:     err,
		})
	}

	seen := make(map[string]bool)
	for _, f := range def.AllFields() {
		if f.Name == "" {
			invalid(nil, "field without name or api_name")
			continue
		}
		if seen[f.Name] {
			invalid(ErrDuplicateField, "duplicate field %q", f.Name)
		}
		seen[f.Name] = true
		validateMembers(f.Name, f.Members, invalid)
	}

	for _, name := range def.OperationNames() {
		op := def.Operations[name]
		if op == nil || op.APIName == "" {
			invalid(nil, "operation %q has no api_name", name)
			continue
		}
		switch op.Kind {
		case MethodInstance, MethodClass, MethodCollection:
		default:
			invalid(nil, "operation %q has unknown kind %q", name, op.Kind)
		}
		switch op.Returns {
		case "", ReturnsResource, ReturnsResources:
		default:
			invalid(nil, "operation %q has unknown returns %q", name, op.Returns)
		}
	}

	for name, rel := range def.Relations {
		if rel == nil || rel.Class == "" {
			invalid(nil, "relation %q has no class", name)
			continue
		}
		if rel.RelType != RelOneToOne && rel.RelType != RelOneToMany {
			invalid(nil, "relation %q has invalid rel_type %q", name, rel.RelType)
		}
		if rel.ClassType != KindResource && rel.ClassType != KindCollection {
			invalid(nil, "relation %q has invalid class_type %q", name, rel.ClassType)
		}
	}

	return errs
}

// validateMembers reports unnamed and duplicate members of a nested field
func validateMembers(path string, members []FieldDefinition, invalid func(error, string, ...any)) {
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if m.Name == "" {
			invalid(nil, "field %q has a member without name or api_name", path)
			continue
		}
		if seen[m.Name] {
			invalid(ErrDuplicateField, "duplicate member %q in field %q", m.Name, path)
		}
		seen[m.Name] = true
		validateMembers(path+"."+m.Name, m.Members, invalid)
	}
}
