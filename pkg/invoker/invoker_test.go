package invoker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	ctx := context.Background()
	inv := NewStatic().
		Handle("CreateQueue", []Param{{Name: "queue_name", APIName: "QueueName", Required: true}},
			Reply(map[string]any{"QueueUrl": "http://x/orders"})).
		Handle("PurgeQueue", nil, nil)

	t.Run("expected params", func(t *testing.T) {
		params, err := inv.ExpectedParams("CreateQueue")
		require.NoError(t, err)
		require.Len(t, params, 1)
		assert.Equal(t, "QueueName", params[0].APIName)

		params[0].Required = false
		again, _ := inv.ExpectedParams("CreateQueue")
		assert.True(t, again[0].Required)
	})

	t.Run("unknown operation", func(t *testing.T) {
		_, err := inv.ExpectedParams("Nope")
		assert.ErrorIs(t, err, ErrUnknownOperation)
		assert.Contains(t, err.Error(), "Nope")

		_, err = inv.Invoke(ctx, "Nope", nil)
		assert.ErrorIs(t, err, ErrUnknownOperation)
	})

	t.Run("invoke records calls", func(t *testing.T) {
		inv.Reset()
		params := map[string]any{"QueueName": "orders"}

		result, err := inv.Invoke(ctx, "CreateQueue", params)
		require.NoError(t, err)
		assert.Equal(t, "http://x/orders", result["QueueUrl"])

		params["QueueName"] = "mutated"
		result["QueueUrl"] = "mutated"

		calls := inv.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, Call{Operation: "CreateQueue", Params: map[string]any{"QueueName": "orders"}}, calls[0])

		again, err := inv.Invoke(ctx, "CreateQueue", nil)
		require.NoError(t, err)
		assert.Equal(t, "http://x/orders", again["QueueUrl"])
	})

	t.Run("nil handler returns empty result", func(t *testing.T) {
		result, err := inv.Invoke(ctx, "PurgeQueue", nil)
		require.NoError(t, err)
		assert.Empty(t, result)
	})

	t.Run("failures pass through", func(t *testing.T) {
		boom := errors.New("connection reset")
		failing := NewStatic().Handle("DeleteQueue", nil, Fail(boom))

		_, err := failing.Invoke(ctx, "DeleteQueue", nil)
		assert.Same(t, boom, err)
	})

	assert.Equal(t, []string{"CreateQueue", "PurgeQueue"}, inv.Operations())
}
