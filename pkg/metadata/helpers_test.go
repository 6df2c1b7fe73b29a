package metadata

import (
	"context"
	"sync/atomic"
)

// countingSource records how often the wrapped source is hit
type countingSource struct {
	Source
	fetches  atomic.Int32
	listings atomic.Int32
}

func (c *countingSource) Versions(ctx context.Context, service string) ([]string, error) {
	c.listings.Add(1)
	return c.Source.Versions(ctx, service)
}

func (c *countingSource) Fetch(ctx context.Context, service, version string) (*ServiceDescription, string, error) {
	c.fetches.Add(1)
	return c.Source.Fetch(ctx, service, version)
}

func queueDoc(marker string) *ServiceDescription {
	return &ServiceDescription{
		Resources: map[string]*TypeDefinition{
			"Queue": {
				Identifiers: []FieldDefinition{{APIName: "QueueUrl"}},
				Fields:      []FieldDefinition{{Name: "name", APIName: "QueueName", Required: true}},
				Operations: map[string]*OperationDefinition{
					"create": {APIName: "CreateQueue", Docs: marker},
				},
			},
		},
	}
}
