package resources

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/dynres/internal/naming"
	"github.com/conduit-lang/dynres/pkg/metadata"
)

// Factory synthesizes types from service descriptions
type Factory struct {
	store      *metadata.Store
	session    *Session
	transcoder naming.Transcoder
	logger     *zap.Logger
}

// ConstructResource builds the resource type name of service
func (f *Factory) ConstructResource(ctx context.Context, service, name string) (*Type, error) {
	return f.ConstructFor(ctx, service, name, metadata.KindResource)
}

// ConstructCollection builds the collection type name of service
func (f *Factory) ConstructCollection(ctx context.Context, service, name string) (*Type, error) {
	return f.ConstructFor(ctx, service, name, metadata.KindCollection)
}

// ConstructFor builds a new type from the service's cached description.
// Every call builds a fresh Type; the session registry is what shares them.
func (f *Factory) ConstructFor(ctx context.Context, service, name string, kind metadata.Kind) (*Type, error) {
	desc, err := f.store.Get(ctx, service)
	if err != nil {
		return nil, err
	}

	def := desc.Type(name, kind)
	if def == nil {
		return nil, &UnknownTypeError{Service: service, Name: name, Kind: string(kind)}
	}
	if err := metadata.RequireVersion(desc, name, def.APIVersions...); err != nil {
		return nil, err
	}

	exts := f.session.extensionsFor(service, name, kind)

	t := &Type{
		service:      service,
		name:         name,
		kind:         kind,
		apiVersion:   desc.APIVersion,
		resourceType: def.Resource,
		fieldIndex:   make(map[string]*Field),
		wireIndex:    make(map[string][]*Field),
		methods:      make(map[string]*Method),
		custom:       make(map[string]MethodFunc),
		relations:    make(map[string]*Relation),
		hooks:        NewHooks(),
		session:      f.session,
		transcoder:   f.transcoder,
		logger:       f.logger,
	}

	if err := f.buildFields(t, def, exts); err != nil {
		return nil, err
	}
	if err := f.buildMethods(t, def); err != nil {
		return nil, err
	}
	f.buildRelations(t, def)

	for _, ext := range exts {
		t.hooks.Add(ext)
		for methodName, fn := range ext.Methods {
			t.custom[methodName] = fn
		}
	}

	f.logger.Debug("constructed type",
		zap.String("service", service),
		zap.String("type", name),
		zap.String("kind", string(kind)),
		zap.String("api_version", desc.APIVersion),
		zap.Int("fields", len(t.fields)),
		zap.Int("methods", len(t.methods)),
		zap.Int("relations", len(t.relations)),
		zap.Int("extensions", len(exts)),
	)
	return t, nil
}

func (f *Factory) buildFields(t *Type, def *metadata.TypeDefinition, exts []Extension) error {
	add := func(fd metadata.FieldDefinition, identifier bool) error {
		if _, dup := t.fieldIndex[fd.Name]; dup {
			return fmt.Errorf("%s: %w %q", t.name, metadata.ErrDuplicateField, fd.Name)
		}

		conv := ConverterForDefinition(fd, f.transcoder)
		for _, ext := range exts {
			if c, ok := ext.Converters[fd.Name]; ok {
				conv = c
			}
		}

		field := NewField(fd, identifier, conv)
		field.owner = t.name

		t.fields = append(t.fields, field)
		t.fieldIndex[field.name] = field
		t.wireIndex[field.apiName] = append(t.wireIndex[field.apiName], field)
		if identifier {
			t.identifiers = append(t.identifiers, field)
		}
		return nil
	}

	for _, fd := range def.Identifiers {
		if err := add(fd, true); err != nil {
			return err
		}
	}
	for _, fd := range def.Fields {
		if err := add(fd, false); err != nil {
			return err
		}
	}
	return nil
}

func (f *Factory) buildMethods(t *Type, def *metadata.TypeDefinition) error {
	for _, name := range def.OperationNames() {
		op := def.Operations[name]

		switch {
		case op.Kind == MethodClass:
		case t.kind == metadata.KindResource && op.Kind == MethodInstance:
		case t.kind == metadata.KindCollection && op.Kind == MethodCollection:
		default:
			return fmt.Errorf("%s.%s: %w: %s method on a %s", t.name, name, ErrWrongKind, op.Kind, t.kind)
		}

		m := newMethodFromDefinition(op)
		if err := m.Attach(t, name); err != nil {
			return err
		}
		t.methods[name] = m
	}
	return nil
}

func (f *Factory) buildRelations(t *Type, def *metadata.TypeDefinition) {
	for name, rd := range def.Relations {
		seed := make(map[string]string, len(rd.Seed))
		for target, owner := range rd.Seed {
			seed[target] = owner
		}

		t.relations[name] = &Relation{
			name:      name,
			class:     rd.Class,
			classType: rd.ClassType,
			service:   rd.Service,
			relType:   rd.RelType,
			required:  rd.Required,
			seed:      seed,
			owner:     t,
		}
	}
}
