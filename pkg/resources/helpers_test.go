package resources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/dynres/pkg/invoker"
	"github.com/conduit-lang/dynres/pkg/metadata"
	"github.com/conduit-lang/dynres/pkg/metadata/bundled"
)

// sqsInvoker answers the queue operations the bundled sqs document binds
func sqsInvoker() *invoker.Static {
	return invoker.NewStatic().
		Handle("CreateQueue", []invoker.Param{
			{Name: "queue_name", APIName: "QueueName", Required: true, Type: "string"},
			{Name: "attributes", APIName: "Attributes", Type: "map"},
		}, invoker.Reply(map[string]any{"QueueUrl": "http://x/orders"})).
		Handle("DeleteQueue", []invoker.Param{
			{Name: "queue_url", APIName: "QueueUrl", Required: true, Type: "string"},
		}, nil).
		Handle("GetQueueAttributes", []invoker.Param{
			{Name: "queue_url", APIName: "QueueUrl", Required: true, Type: "string"},
			{Name: "attribute_names", APIName: "AttributeNames", Type: "list"},
		}, invoker.Reply(map[string]any{
			"Attributes": map[string]any{"VisibilityTimeout": "30"},
		})).
		Handle("GetQueueUrl", []invoker.Param{
			{Name: "queue_name", APIName: "QueueName", Required: true, Type: "string"},
		}, invoker.Reply(map[string]any{"QueueUrl": "http://x/billing"})).
		Handle("ListQueues", []invoker.Param{
			{Name: "queue_name_prefix", APIName: "QueueNamePrefix", Type: "string"},
		}, invoker.Reply(map[string]any{
			"QueueUrls": []any{"http://x/billing", "http://x/orders"},
		})).
		Handle("SendMessage", []invoker.Param{
			{Name: "queue_url", APIName: "QueueUrl", Required: true, Type: "string"},
			{Name: "message_body", APIName: "MessageBody", Required: true, Type: "string"},
		}, invoker.Reply(map[string]any{"MessageId": "m-1"})).
		Handle("ReceiveMessage", []invoker.Param{
			{Name: "queue_url", APIName: "QueueUrl", Required: true, Type: "string"},
			{Name: "max_number_of_messages", APIName: "MaxNumberOfMessages", Type: "integer"},
		}, invoker.Reply(map[string]any{
			"Messages": []any{
				map[string]any{"MessageId": "m-1", "ReceiptHandle": "r-1", "Body": "hello"},
				map[string]any{"MessageId": "m-2", "ReceiptHandle": "r-2", "Body": "world"},
			},
		})).
		Handle("DeleteMessage", []invoker.Param{
			{Name: "queue_url", APIName: "QueueUrl", Required: true, Type: "string"},
			{Name: "receipt_handle", APIName: "ReceiptHandle", Required: true, Type: "string"},
		}, nil)
}

// newBundledSession serves the documents compiled into the binary
func newBundledSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	store := metadata.NewStore([]metadata.Source{bundled.Source()})
	return NewSession(store, opts...)
}

func boolPtr(b bool) *bool { return &b }

// widgetDoc exercises class methods, converters and cross-service relations
func widgetDoc() *metadata.ServiceDescription {
	return &metadata.ServiceDescription{
		Resources: map[string]*metadata.TypeDefinition{
			"Widget": {
				Identifiers: []metadata.FieldDefinition{
					{Name: "id", APIName: "WidgetId", Type: "integer"},
				},
				Fields: []metadata.FieldDefinition{
					{Name: "label", APIName: "Label", Type: "string"},
					{Name: "created_at", APIName: "CreatedAt", Type: "timestamp"},
					{Name: "owner_id", APIName: "OwnerId", Type: "string"},
					{Name: "size", APIName: "Size"},
				},
				Operations: map[string]*metadata.OperationDefinition{
					"lookup": {
						APIName:   "LookupWidget",
						Kind:      metadata.MethodClass,
						ResultKey: "Widget.Label",
					},
					"rename": {
						APIName: "RenameWidget",
						Params: map[string]*metadata.ParamOverride{
							"Label": {Required: boolPtr(true)},
						},
					},
					"resize": {
						APIName:  "ResizeWidget",
						Defaults: map[string]any{"Size": "medium", "Unit": "cm"},
					},
				},
				Relations: map[string]*metadata.RelationDefinition{
					"owner": {
						Class:    "Account",
						Service:  "accounts",
						RelType:  metadata.RelOneToOne,
						Required: true,
						Seed:     map[string]string{"id": "owner_id"},
					},
				},
			},
		},
	}
}

func accountDoc() *metadata.ServiceDescription {
	return &metadata.ServiceDescription{
		Resources: map[string]*metadata.TypeDefinition{
			"Account": {
				Identifiers: []metadata.FieldDefinition{{Name: "id", APIName: "AccountId"}},
				Fields:      []metadata.FieldDefinition{{Name: "email", APIName: "Email"}},
			},
		},
	}
}

func widgetInvoker() *invoker.Static {
	return invoker.NewStatic().
		Handle("LookupWidget", []invoker.Param{
			{Name: "widget_id", APIName: "WidgetId", Required: true, Type: "integer"},
		}, invoker.Reply(map[string]any{
			"Widget": map[string]any{"Label": "sprocket"},
		})).
		Handle("RenameWidget", []invoker.Param{
			{Name: "widget_id", APIName: "WidgetId", Required: true, Type: "integer"},
			{Name: "label", APIName: "Label", Type: "string"},
		}, func(_ context.Context, params map[string]any) (map[string]any, error) {
			return map[string]any{"Label": params["Label"], "Revision": 2}, nil
		}).
		Handle("ResizeWidget", []invoker.Param{
			{Name: "widget_id", APIName: "WidgetId", Required: true, Type: "integer"},
			{Name: "size", APIName: "Size", Type: "string"},
			{Name: "unit", APIName: "Unit", Type: "string"},
		}, nil)
}

// newWidgetSession serves the widget and account documents from memory
func newWidgetSession(t *testing.T, opts ...Option) (*Session, *metadata.MemorySource) {
	t.Helper()
	src := metadata.NewMemorySource("test")
	src.Add("widgets", "2020-01-01", widgetDoc())
	src.Add("accounts", "2019-06-01", accountDoc())
	return NewSession(metadata.NewStore([]metadata.Source{src}), opts...), src
}

func mustResource(t *testing.T, s *Session, service, name string, inv invoker.Invoker, data map[string]any) *Resource {
	t.Helper()
	r, err := s.NewResource(context.Background(), service, name, inv, data)
	require.NoError(t, err)
	return r
}

func mustCollection(t *testing.T, s *Session, service, name string, inv invoker.Invoker, data map[string]any) *Collection {
	t.Helper()
	c, err := s.NewCollection(context.Background(), service, name, inv, data)
	require.NoError(t, err)
	return c
}
