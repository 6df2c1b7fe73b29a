package resources

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"go.uber.org/zap"

	"github.com/conduit-lang/dynres/pkg/invoker"
	"github.com/conduit-lang/dynres/pkg/metadata"
)

// Relation declares a lazily resolved reference from one type to another
type Relation struct {
	name      string
	class     string
	classType metadata.Kind
	service   string
	relType   string
	required  bool
	seed      map[string]string
	owner     *Type
}

// Name returns the local relation name
func (r *Relation) Name() string { return r.name }

// Class returns the target type name
func (r *Relation) Class() string { return r.class }

// ClassType returns whether the target is a resource or collection
func (r *Relation) ClassType() metadata.Kind { return r.classType }

// Service returns the target service, which defaults to the owner's
func (r *Relation) Service() string {
	if r.service == "" {
		return r.owner.service
	}
	return r.service
}

// CrossService reports whether the target lives in another service
func (r *Relation) CrossService() bool {
	return r.service != "" && r.service != r.owner.service
}

// Cardinality returns "1-1" or "1-M"
func (r *Relation) Cardinality() string { return r.relType }

// Required reports whether resolution fails when a seed value is missing
func (r *Relation) Required() bool { return r.required }

// Seed returns the declared target-field to owner-field pairs
func (r *Relation) Seed() map[string]string {
	out := make(map[string]string, len(r.seed))
	for k, v := range r.seed {
		out[k] = v
	}
	return out
}

// RelationResolver builds related instances on demand and memoizes them per owner
type RelationResolver struct {
	session *Session
	logger  *zap.Logger
}

// Resolve returns the instance a relation of owner points at. Repeated
// calls return the same instance until an identifier of owner changes.
func (rr *RelationResolver) Resolve(ctx context.Context, owner Instance, name string) (Instance, error) {
	ot := owner.Type()
	rel, ok := ot.Relation(name)
	if !ok {
		return nil, &NoSuchRelationError{Type: ot.name, Relation: name}
	}

	st := owner.state()
	snapshot := memoSnapshot(owner, rel)
	if memo, ok := st.memo[name]; ok {
		if reflect.DeepEqual(memo.snapshot, snapshot) {
			return memo.instance, nil
		}
		delete(st.memo, name)
	}

	target, err := rr.session.TypeFor(ctx, rel.Service(), rel.class, rel.classType)
	if err != nil {
		return nil, fmt.Errorf("relation %s.%s: %w", ot.name, name, err)
	}

	inv := owner.Invoker()
	if rel.CrossService() {
		if inv, err = rr.session.Invoker(ctx, rel.Service()); err != nil {
			return nil, fmt.Errorf("relation %s.%s: %w", ot.name, name, err)
		}
	}

	seed, err := rr.seedValues(owner, rel, target)
	if err != nil {
		return nil, err
	}

	related := rr.build(target, inv, seed)
	st.memo[name] = &relationMemo{instance: related, snapshot: snapshot}

	keys := make([]string, 0, len(seed))
	for k := range seed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rr.logger.Debug("resolved relation",
		zap.String("owner", ot.name),
		zap.String("relation", name),
		zap.String("target", target.name),
		zap.Strings("seeded", keys),
	)
	return related, nil
}

// memoSnapshot captures every owner value the relation is seeded from: the
// identifiers plus the sources of declared seed pairs
func memoSnapshot(owner Instance, rel *Relation) map[string]any {
	snapshot := owner.Identifiers()
	ot := owner.Type()
	for _, ownerName := range rel.seed {
		f, ok := ot.Field(ownerName)
		if !ok {
			continue
		}
		if v, err := f.ReadLocal(owner); err == nil {
			snapshot[ownerName] = v
		}
	}
	return snapshot
}

func (rr *RelationResolver) build(target *Type, inv invoker.Invoker, seed map[string]any) Instance {
	instance := target.New(inv, nil)
	for name, value := range seed {
		if f, ok := target.Field(name); ok {
			f.WriteLocal(instance, value)
		}
	}
	return instance
}

// seedValues picks the target fields to fill from owner. One-to-many
// relations fill only inherited identifiers; one-to-one relations fill every
// identifier. Both match owner identifiers by wire name, then apply the
// declared seed pairs.
func (rr *RelationResolver) seedValues(owner Instance, rel *Relation, target *Type) (map[string]any, error) {
	ot := owner.Type()
	seed := make(map[string]any)

	var candidates []*Field
	for _, tf := range target.identifiers {
		if rel.relType == metadata.RelOneToMany && !tf.inherited {
			continue
		}
		candidates = append(candidates, tf)
	}

	for _, tf := range candidates {
		for _, of := range ot.identifiers {
			if of.apiName != tf.apiName {
				continue
			}
			if v, err := of.ReadLocal(owner); err == nil {
				seed[tf.name] = v
				break
			}
		}
	}

	for targetName, ownerName := range rel.seed {
		tf, ok := target.Field(targetName)
		if !ok {
			return nil, fmt.Errorf("relation %s.%s: seed target %q is not a field of %s",
				ot.name, rel.name, targetName, target.name)
		}
		of, ok := ot.Field(ownerName)
		if !ok {
			return nil, fmt.Errorf("relation %s.%s: seed source %q is not a field of %s",
				ot.name, rel.name, ownerName, ot.name)
		}
		if rel.relType == metadata.RelOneToMany && !of.identifier {
			return nil, fmt.Errorf("relation %s.%s: one-to-many seed source %q must be an identifier",
				ot.name, rel.name, ownerName)
		}
		if v, err := of.ReadLocal(owner); err == nil {
			seed[tf.name] = v
		}
	}

	if rel.required {
		for _, tf := range candidates {
			if _, ok := seed[tf.name]; !ok {
				return nil, fmt.Errorf("relation %s.%s: %w", ot.name, rel.name,
					&FieldNotSetError{Type: target.name, Field: tf.name})
			}
		}
	}
	return seed, nil
}
