package resources

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/dynres/pkg/invoker"
)

// Collection represents the set of one resource type
type Collection struct {
	*object
}

func newCollection(t *Type, inv invoker.Invoker) *Collection {
	c := &Collection{object: newObject(t, inv)}
	c.self = c
	return c
}

// ResourceType returns the type of the resources this collection builds
func (c *Collection) ResourceType(ctx context.Context) (*Type, error) {
	if c.typ.resourceType == "" {
		return nil, fmt.Errorf("%s: %w: collection has no associated resource", c.typ.name, ErrUnknownType)
	}
	return c.typ.session.ResourceType(ctx, c.typ.service, c.typ.resourceType)
}

// BuildResource constructs a resource of the associated type from a
// wire-keyed map. The collection's identifier values are copied onto fields
// of the resource with the same wire name; keys that match no field are kept
// as ad hoc attributes under their local spelling.
func (c *Collection) BuildResource(ctx context.Context, data map[string]any) (*Resource, error) {
	rt, err := c.ResourceType(ctx)
	if err != nil {
		return nil, err
	}

	r := newResource(rt, c.inv)
	for _, id := range c.typ.identifiers {
		v, ok := c.data[id.name]
		if !ok {
			continue
		}
		for _, f := range rt.FieldsByWire(id.apiName) {
			f.WriteLocal(r, v)
		}
	}

	if err := bindWire(r, data, false); err != nil {
		return nil, err
	}

	c.typ.logger.Debug("built resource from collection",
		zap.String("collection", c.typ.name),
		zap.String("resource", rt.name),
		zap.Stringer("id", r.id),
	)
	return r, nil
}

// bindWire writes wire-keyed values into obj. Matched keys are removed from
// data when consume is set; otherwise unmatched keys become ad hoc attributes.
func bindWire(obj Instance, data map[string]any, consume bool) error {
	t := obj.Type()
	st := obj.state()
	for key, value := range data {
		fields := t.FieldsByWire(key)
		if len(fields) == 0 {
			if !consume {
				st.extra[t.transcoder.ToLocal(key)] = value
			}
			continue
		}
		for _, f := range fields {
			if err := f.WriteWire(obj, value); err != nil {
				return err
			}
		}
		if consume {
			delete(data, key)
		}
	}
	return nil
}

var _ Instance = (*Collection)(nil)
var _ Instance = (*Resource)(nil)
