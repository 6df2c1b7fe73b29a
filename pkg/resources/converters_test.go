package resources

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/dynres/internal/naming"
	"github.com/conduit-lang/dynres/pkg/invoker"
	"github.com/conduit-lang/dynres/pkg/metadata"
)

func redrivePolicy() metadata.FieldDefinition {
	return metadata.FieldDefinition{
		Name:    "redrive_policy",
		APIName: "RedrivePolicy",
		Type:    metadata.ValueStructure,
		Members: []metadata.FieldDefinition{
			{Name: "target", APIName: "DeadLetterTargetArn", Type: "string"},
			{Name: "max_receives", APIName: "MaxReceiveCount", Type: "integer"},
		},
	}
}

func TestStructureConverter(t *testing.T) {
	conv := ConverterForDefinition(redrivePolicy(), naming.Default{})

	wire := map[string]any{
		"DeadLetterTargetArn": "arn:dlq",
		"MaxReceiveCount":     "5",
		"ExtraSettings":       map[string]any{"RetentionPeriod": 60},
	}

	local, err := conv.ToLocal(wire)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"target":         "arn:dlq",
		"max_receives":   int64(5),
		"extra_settings": map[string]any{"retention_period": 60},
	}, local)

	back, err := conv.ToWire(local)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"DeadLetterTargetArn": "arn:dlq",
		"MaxReceiveCount":     int64(5),
		"ExtraSettings":       map[string]any{"RetentionPeriod": 60},
	}, back)

	t.Run("nil passes through", func(t *testing.T) {
		v, err := conv.ToLocal(nil)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("non-structures are rejected", func(t *testing.T) {
		_, err := conv.ToLocal("not a map")
		assert.Error(t, err)
	})

	t.Run("member conversion errors name the member", func(t *testing.T) {
		_, err := conv.ToLocal(map[string]any{"MaxReceiveCount": "many"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_receives")
	})
}

func TestListConverter(t *testing.T) {
	conv := ConverterForDefinition(metadata.FieldDefinition{
		Name:    "tags",
		APIName: "Tags",
		Type:    metadata.ValueList,
		Members: []metadata.FieldDefinition{
			{Name: "key", APIName: "Key", Type: "string"},
			{Name: "created", APIName: "CreatedAt", Type: "timestamp"},
		},
	}, naming.Default{})

	wire := []map[string]any{
		{"Key": "team", "CreatedAt": "2024-01-02T03:04:05Z"},
		{"Key": "env", "OwnerName": "ops"},
	}

	local, err := conv.ToLocal(wire)
	require.NoError(t, err)
	items := local.([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "team", first["key"])
	assert.True(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Equal(first["created"].(time.Time)))
	assert.Equal(t, map[string]any{"key": "env", "owner_name": "ops"}, items[1])

	back, err := conv.ToWire(local)
	require.NoError(t, err)
	assert.Equal(t, []any{
		map[string]any{"Key": "team", "CreatedAt": "2024-01-02T03:04:05Z"},
		map[string]any{"Key": "env", "OwnerName": "ops"},
	}, back)

	t.Run("scalar elements pass through", func(t *testing.T) {
		v, err := conv.ToLocal([]string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b"}, v)
	})

	t.Run("non-lists are rejected", func(t *testing.T) {
		_, err := conv.ToLocal(map[string]any{"Key": "x"})
		assert.Error(t, err)
	})
}

func TestNestedFields(t *testing.T) {
	ctx := context.Background()

	src := metadata.NewMemorySource("test")
	src.Add("queues", "2022-01-01", &metadata.ServiceDescription{
		Resources: map[string]*metadata.TypeDefinition{
			"DeadLetterQueue": {
				Identifiers: []metadata.FieldDefinition{{Name: "url", APIName: "QueueUrl"}},
				Fields:      []metadata.FieldDefinition{redrivePolicy()},
				Operations: map[string]*metadata.OperationDefinition{
					"load": {APIName: "DescribeRedrive"},
					"save": {APIName: "PutRedrive"},
				},
			},
		},
	})
	s := NewSession(metadata.NewStore([]metadata.Source{src}))

	params := []invoker.Param{
		{Name: "queue_url", APIName: "QueueUrl", Required: true},
		{Name: "redrive_policy", APIName: "RedrivePolicy", Type: "structure"},
	}
	inv := invoker.NewStatic().
		Handle("DescribeRedrive", params[:1], invoker.Reply(map[string]any{
			"RedrivePolicy": map[string]any{"DeadLetterTargetArn": "arn:dlq", "MaxReceiveCount": 3},
		})).
		Handle("PutRedrive", params, nil)

	q := mustResource(t, s, "queues", "DeadLetterQueue", inv, map[string]any{"url": "http://x/dlq"})

	_, err := q.Call(ctx, "load", nil)
	require.NoError(t, err)

	policy, err := q.Get("redrive_policy")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"target": "arn:dlq", "max_receives": int64(3)}, policy)

	require.NoError(t, q.Set("redrive_policy", map[string]any{"target": "arn:other", "max_receives": 7}))
	_, err = q.Call(ctx, "save", nil)
	require.NoError(t, err)

	calls := inv.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, map[string]any{
		"QueueUrl":      "http://x/dlq",
		"RedrivePolicy": map[string]any{"DeadLetterTargetArn": "arn:other", "MaxReceiveCount": int64(7)},
	}, calls[1].Params)
}
