package resources

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/dynres/pkg/invoker"
	"github.com/conduit-lang/dynres/pkg/metadata"
)

func TestRelationResolver_SameService(t *testing.T) {
	ctx := context.Background()
	s := newBundledSession(t)
	inv := sqsInvoker()

	queue := mustResource(t, s, "sqs", "Queue", inv, map[string]any{"url": "http://x/orders"})

	rel, ok := queue.Type().Relation("messages")
	require.True(t, ok)
	assert.Equal(t, "MessageCollection", rel.Class())
	assert.Equal(t, metadata.KindCollection, rel.ClassType())
	assert.Equal(t, metadata.RelOneToMany, rel.Cardinality())
	assert.Equal(t, "sqs", rel.Service())
	assert.False(t, rel.CrossService())

	t.Run("related instances share the invoker", func(t *testing.T) {
		messages, err := queue.Related(ctx, "messages")
		require.NoError(t, err)
		assert.Same(t, inv, messages.Invoker())
	})

	t.Run("unknown relations", func(t *testing.T) {
		_, err := queue.Related(ctx, "owner")
		assert.ErrorIs(t, err, ErrNoSuchRelation)

		var nsr *NoSuchRelationError
		require.True(t, errors.As(err, &nsr))
		assert.Equal(t, "Queue", nsr.Type)
		assert.Equal(t, "owner", nsr.Relation)
	})

	t.Run("deleting an identifier drops the memo", func(t *testing.T) {
		first, err := queue.Related(ctx, "messages")
		require.NoError(t, err)

		require.NoError(t, queue.Delete("url"))
		second, err := queue.Related(ctx, "messages")
		require.NoError(t, err)
		assert.NotSame(t, first, second)
		assert.Empty(t, second.Data())
	})

	t.Run("non-identifier writes keep the memo", func(t *testing.T) {
		require.NoError(t, queue.Set("url", "http://x/orders"))
		first, err := queue.Related(ctx, "messages")
		require.NoError(t, err)

		require.NoError(t, queue.Set("name", "orders"))
		again, err := queue.Related(ctx, "messages")
		require.NoError(t, err)
		assert.Same(t, first, again)
	})

	t.Run("one-to-many seeds only inherited identifiers", func(t *testing.T) {
		msg := mustResource(t, s, "sqs", "Message", inv, map[string]any{
			"queue_url":      "http://x/orders",
			"receipt_handle": "r-1",
		})

		q, err := msg.Related(ctx, "queue")
		require.NoError(t, err)
		messages, err := q.Related(ctx, "messages")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"queue_url": "http://x/orders"}, messages.Data())
	})
}

func TestRelationResolver_CrossService(t *testing.T) {
	ctx := context.Background()
	accounts := invoker.NewStatic()

	provider := func(_ context.Context, service string) (invoker.Invoker, error) {
		if service != "accounts" {
			return nil, errors.New("unexpected service " + service)
		}
		return accounts, nil
	}

	t.Run("seeds from declared pairs and uses the provider", func(t *testing.T) {
		s, _ := newWidgetSession(t, WithInvokerProvider(provider))
		widget := mustResource(t, s, "widgets", "Widget", widgetInvoker(), map[string]any{
			"id":       1,
			"owner_id": "acct-1",
		})

		rel, ok := widget.Type().Relation("owner")
		require.True(t, ok)
		assert.True(t, rel.CrossService())
		assert.True(t, rel.Required())
		assert.Equal(t, map[string]string{"id": "owner_id"}, rel.Seed())

		owner, err := widget.Related(ctx, "owner")
		require.NoError(t, err)
		assert.Equal(t, "Account", owner.Type().Name())
		assert.Equal(t, "accounts", owner.Type().Service())
		assert.Equal(t, map[string]any{"id": "acct-1"}, owner.Data())
		assert.Same(t, accounts, owner.Invoker())
	})

	t.Run("required relations fail without a seed value", func(t *testing.T) {
		s, _ := newWidgetSession(t, WithInvokerProvider(provider))
		widget := mustResource(t, s, "widgets", "Widget", widgetInvoker(), map[string]any{"id": 1})

		_, err := widget.Related(ctx, "owner")
		assert.ErrorIs(t, err, ErrFieldNotSet)

		var notSet *FieldNotSetError
		require.True(t, errors.As(err, &notSet))
		assert.Equal(t, "Account", notSet.Type)
		assert.Equal(t, "id", notSet.Field)
	})

	t.Run("without a provider", func(t *testing.T) {
		s, _ := newWidgetSession(t)
		widget := mustResource(t, s, "widgets", "Widget", widgetInvoker(), map[string]any{
			"id":       1,
			"owner_id": "acct-1",
		})

		_, err := widget.Related(ctx, "owner")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no invoker provider")
	})

	t.Run("changing the owner identifier re-resolves", func(t *testing.T) {
		s, _ := newWidgetSession(t, WithInvokerProvider(provider))
		widget := mustResource(t, s, "widgets", "Widget", widgetInvoker(), map[string]any{
			"id":       1,
			"owner_id": "acct-1",
		})

		first, err := widget.Related(ctx, "owner")
		require.NoError(t, err)

		require.NoError(t, widget.Set("owner_id", "acct-2"))
		require.NoError(t, widget.Set("id", 2))

		second, err := widget.Related(ctx, "owner")
		require.NoError(t, err)
		assert.NotSame(t, first, second)
		assert.Equal(t, map[string]any{"id": "acct-2"}, second.Data())
	})

	t.Run("changing a seed source re-resolves", func(t *testing.T) {
		s, _ := newWidgetSession(t, WithInvokerProvider(provider))
		widget := mustResource(t, s, "widgets", "Widget", widgetInvoker(), map[string]any{
			"id":       1,
			"owner_id": "acct-1",
		})

		first, err := widget.Related(ctx, "owner")
		require.NoError(t, err)

		require.NoError(t, widget.Set("label", "gear"))
		again, err := widget.Related(ctx, "owner")
		require.NoError(t, err)
		assert.Same(t, first, again)

		require.NoError(t, widget.Set("owner_id", "acct-2"))
		second, err := widget.Related(ctx, "owner")
		require.NoError(t, err)
		assert.NotSame(t, first, second)
		assert.Equal(t, map[string]any{"id": "acct-2"}, second.Data())

		require.NoError(t, widget.Delete("owner_id"))
		_, err = widget.Related(ctx, "owner")
		assert.ErrorIs(t, err, ErrFieldNotSet)
	})
}
