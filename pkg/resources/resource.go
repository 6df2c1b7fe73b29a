package resources

import "github.com/conduit-lang/dynres/pkg/invoker"

// Resource is a single remote entity addressed by its identifier fields
type Resource struct {
	*object
}

func newResource(t *Type, inv invoker.Invoker) *Resource {
	r := &Resource{object: newObject(t, inv)}
	r.self = r
	return r
}
