package resources

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/conduit-lang/dynres/internal/registry"
	"github.com/conduit-lang/dynres/pkg/metadata"
)

func TestSession_TypeFor(t *testing.T) {
	ctx := context.Background()

	t.Run("types are built once per key", func(t *testing.T) {
		s := newBundledSession(t)

		first, err := s.ResourceType(ctx, "sqs", "Queue")
		require.NoError(t, err)
		second, err := s.ResourceType(ctx, "sqs", "Queue")
		require.NoError(t, err)
		assert.Same(t, first, second)

		q1 := mustResource(t, s, "sqs", "Queue", sqsInvoker(), nil)
		q2 := mustResource(t, s, "sqs", "Queue", sqsInvoker(), nil)
		assert.Same(t, q1.Type(), q2.Type())
		assert.Equal(t, int64(1), s.Registry().Builds())
	})

	t.Run("concurrent first use", func(t *testing.T) {
		s := newBundledSession(t)

		var wg sync.WaitGroup
		types := make([]*Type, 16)
		for i := range types {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				typ, err := s.CollectionType(ctx, "sqs", "MessageCollection")
				assert.NoError(t, err)
				types[i] = typ
			}(i)
		}
		wg.Wait()

		for _, typ := range types {
			assert.Same(t, types[0], typ)
		}
		assert.Equal(t, int64(1), s.Registry().Builds())
	})

	t.Run("resource and collection names do not collide", func(t *testing.T) {
		s := newBundledSession(t)

		_, err := s.CollectionType(ctx, "sqs", "Queue")
		assert.ErrorIs(t, err, ErrUnknownType)

		qt, err := s.ResourceType(ctx, "sqs", "Queue")
		require.NoError(t, err)
		assert.Equal(t, metadata.KindResource, qt.Kind())
	})

	t.Run("unknown types and services", func(t *testing.T) {
		s := newBundledSession(t)

		_, err := s.ResourceType(ctx, "sqs", "Nope")
		var unknown *UnknownTypeError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "Nope", unknown.Name)

		_, err = s.ResourceType(ctx, "nosuchservice", "Queue")
		assert.ErrorIs(t, err, metadata.ErrMetadataNotFound)
		assert.Equal(t, 0, s.Registry().Len())
	})

	t.Run("kind checks on construction", func(t *testing.T) {
		s := newBundledSession(t)
		qt, err := s.ResourceType(ctx, "sqs", "Queue")
		require.NoError(t, err)

		_, err = qt.NewCollection(sqsInvoker(), nil)
		assert.ErrorIs(t, err, ErrWrongKind)
		assert.IsType(t, &Resource{}, qt.New(sqsInvoker(), nil))
	})

	t.Run("api version mismatch", func(t *testing.T) {
		doc := widgetDoc()
		doc.Resources["Widget"].APIVersions = []string{"2030-01-01"}
		src := metadata.NewMemorySource("test")
		src.Add("widgets", "2020-01-01", doc)
		s := NewSession(metadata.NewStore([]metadata.Source{src}))

		_, err := s.ResourceType(ctx, "widgets", "Widget")
		assert.ErrorIs(t, err, metadata.ErrAPIVersionMismatch)
	})

	t.Run("shared registry", func(t *testing.T) {
		reg := registry.New[*Type]()
		a := newBundledSession(t, WithRegistry(reg))
		b := newBundledSession(t, WithRegistry(reg))

		ta, err := a.ResourceType(ctx, "sqs", "Queue")
		require.NoError(t, err)
		tb, err := b.ResourceType(ctx, "sqs", "Queue")
		require.NoError(t, err)
		assert.Same(t, ta, tb)
	})
}

func TestSession_Invalidation(t *testing.T) {
	ctx := context.Background()

	t.Run("reload rebuilds types from the new document", func(t *testing.T) {
		s, src := newWidgetSession(t)

		before, err := s.ResourceType(ctx, "widgets", "Widget")
		require.NoError(t, err)
		widget, err := before.NewResource(widgetInvoker(), nil)
		require.NoError(t, err)

		src.Add("widgets", "2021-01-01", widgetDoc())
		require.NoError(t, s.Reload(ctx, "widgets"))

		after, err := s.ResourceType(ctx, "widgets", "Widget")
		require.NoError(t, err)
		assert.NotSame(t, before, after)
		assert.Equal(t, "2021-01-01", after.APIVersion())
		assert.Same(t, before, widget.Type())
	})

	t.Run("reload errors keep the registry", func(t *testing.T) {
		s, src := newWidgetSession(t)
		before, err := s.ResourceType(ctx, "widgets", "Widget")
		require.NoError(t, err)

		src.Remove("widgets", "2020-01-01")
		assert.Error(t, s.Reload(ctx, "widgets"))

		after, err := s.ResourceType(ctx, "widgets", "Widget")
		require.NoError(t, err)
		assert.Same(t, before, after)
	})

	t.Run("extending a type rebuilds it", func(t *testing.T) {
		s, _ := newWidgetSession(t)
		before, err := s.ResourceType(ctx, "widgets", "Widget")
		require.NoError(t, err)

		s.Extend("widgets", "Widget", metadata.KindResource, Extension{})
		after, err := s.ResourceType(ctx, "widgets", "Widget")
		require.NoError(t, err)
		assert.NotSame(t, before, after)
	})
}

func TestSession_WatchDirs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	write := func(name string) {
		data, err := metadata.Encode(widgetDoc())
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
	write("widgets-2020-01-01.json")

	core, logs := observer.New(zap.InfoLevel)
	s := NewSession(
		metadata.NewStore([]metadata.Source{metadata.NewDirSource(dir)}),
		WithLogger(zap.New(core)),
	)

	before, err := s.ResourceType(ctx, "widgets", "Widget")
	require.NoError(t, err)
	assert.Equal(t, "2020-01-01", before.APIVersion())

	w, err := s.WatchDirs(ctx, dir)
	require.NoError(t, err)
	defer w.Stop()

	write("widgets-2021-01-01.json")

	require.Eventually(t, func() bool {
		typ, err := s.ResourceType(ctx, "widgets", "Widget")
		return err == nil && typ.APIVersion() == "2021-01-01"
	}, 5*time.Second, 20*time.Millisecond)

	assert.NotZero(t, logs.FilterMessage("reloaded service").Len())
}

func TestType_Describe(t *testing.T) {
	s, _ := newWidgetSession(t)
	wt, err := s.ResourceType(context.Background(), "widgets", "Widget")
	require.NoError(t, err)

	text := wt.Describe()
	assert.Contains(t, text, "Widget (widgets resource, api 2020-01-01)")
	assert.Contains(t, text, "id <- WidgetId integer [identifier]")
	assert.Contains(t, text, "lookup -> LookupWidget (class)")
	assert.Contains(t, text, "rename -> RenameWidget (instance)")
	assert.Contains(t, text, "owner -> Account resource (1-1)")
	assert.Equal(t, "widgets/Widget", wt.String())

	names := make([]string, 0)
	for _, f := range wt.Fields() {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"id", "label", "created_at", "owner_id", "size"}, names)
	assert.Equal(t, []string{"lookup", "rename", "resize"}, wt.MethodNames())
}
