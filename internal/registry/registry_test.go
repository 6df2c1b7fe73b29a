package registry

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeType struct {
	name string
}

func TestRegistry(t *testing.T) {
	key := Key{Service: "sqs", Name: "Queue", Kind: "resource"}

	t.Run("second call returns identical value", func(t *testing.T) {
		reg := New[*fakeType]()
		calls := 0
		build := func() (*fakeType, error) {
			calls++
			return &fakeType{name: "Queue"}, nil
		}

		first, err := reg.GetOrBuild(key, build)
		require.NoError(t, err)
		second, err := reg.GetOrBuild(key, build)
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, calls)
		assert.Equal(t, int64(1), reg.Builds())
	})

	t.Run("kind is part of the key", func(t *testing.T) {
		reg := New[*fakeType]()
		res, _ := reg.GetOrBuild(key, func() (*fakeType, error) { return &fakeType{"r"}, nil })
		col, _ := reg.GetOrBuild(Key{Service: "sqs", Name: "Queue", Kind: "collection"},
			func() (*fakeType, error) { return &fakeType{"c"}, nil })

		assert.NotSame(t, res, col)
		assert.Equal(t, 2, reg.Len())
	})

	t.Run("build errors are not cached", func(t *testing.T) {
		reg := New[*fakeType]()
		boom := errors.New("boom")

		_, err := reg.GetOrBuild(key, func() (*fakeType, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, reg.Len())

		v, err := reg.GetOrBuild(key, func() (*fakeType, error) { return &fakeType{"ok"}, nil })
		require.NoError(t, err)
		assert.Equal(t, "ok", v.name)
	})

	t.Run("invalidate is idempotent and keeps old values usable", func(t *testing.T) {
		reg := New[*fakeType]()
		old, _ := reg.GetOrBuild(key, func() (*fakeType, error) { return &fakeType{"v1"}, nil })

		reg.Invalidate(key)
		reg.Invalidate(key)
		assert.Equal(t, 0, reg.Len())

		fresh, _ := reg.GetOrBuild(key, func() (*fakeType, error) { return &fakeType{"v2"}, nil })
		assert.NotSame(t, old, fresh)
		assert.Equal(t, "v1", old.name)
	})

	t.Run("invalidate service", func(t *testing.T) {
		reg := New[*fakeType]()
		reg.Set(Key{"sqs", "Queue", "resource"}, &fakeType{})
		reg.Set(Key{"sqs", "QueueCollection", "collection"}, &fakeType{})
		reg.Set(Key{"sns", "Topic", "resource"}, &fakeType{})

		assert.Equal(t, 2, reg.InvalidateService("sqs"))
		assert.Equal(t, []Key{{"sns", "Topic", "resource"}}, reg.Keys())
	})
}

func TestRegistryConcurrentBuildOnce(t *testing.T) {
	reg := New[*fakeType]()
	key := Key{Service: "sqs", Name: "Queue", Kind: "resource"}

	var calls atomic.Int32
	build := func() (*fakeType, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return &fakeType{name: "Queue"}, nil
	}

	const workers = 32
	results := make([]*fakeType, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := reg.GetOrBuild(key, build)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Same(t, results[0], v)
	}
}

func TestRegistryInvalidateDuringBuild(t *testing.T) {
	key := Key{Service: "sqs", Name: "Queue", Kind: "resource"}

	// blockingBuild returns a build that signals started and waits for release
	blockingBuild := func(name string) (func() (*fakeType, error), chan struct{}, chan struct{}) {
		started := make(chan struct{})
		release := make(chan struct{})
		return func() (*fakeType, error) {
			close(started)
			<-release
			return &fakeType{name: name}, nil
		}, started, release
	}

	tests := []struct {
		name       string
		invalidate func(reg *Registry[*fakeType])
	}{
		{"key", func(reg *Registry[*fakeType]) { reg.Invalidate(key) }},
		{"service", func(reg *Registry[*fakeType]) { reg.InvalidateService("sqs") }},
		{"clear", func(reg *Registry[*fakeType]) { reg.Clear() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := New[*fakeType]()
			build, started, release := blockingBuild("stale")

			done := make(chan *fakeType, 1)
			go func() {
				v, err := reg.GetOrBuild(key, build)
				assert.NoError(t, err)
				done <- v
			}()

			<-started
			tt.invalidate(reg)

			fresh, err := reg.GetOrBuild(key, func() (*fakeType, error) { return &fakeType{name: "fresh"}, nil })
			require.NoError(t, err)
			assert.Equal(t, "fresh", fresh.name)

			close(release)
			stale := <-done
			assert.Equal(t, "stale", stale.name)

			cached, ok := reg.Get(key)
			require.True(t, ok)
			assert.Same(t, fresh, cached)
			assert.Equal(t, int64(1), reg.Builds())
		})
	}

	t.Run("nothing is cached when the build finishes after invalidation", func(t *testing.T) {
		reg := New[*fakeType]()
		build, started, release := blockingBuild("stale")

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, err := reg.GetOrBuild(key, build)
			assert.NoError(t, err)
		}()

		<-started
		reg.Invalidate(key)
		close(release)
		<-done

		_, ok := reg.Get(key)
		assert.False(t, ok)
		assert.Equal(t, 0, reg.Len())
	})
}

func TestRegistryKeysWithSeparators(t *testing.T) {
	reg := New[*fakeType]()
	first := Key{Service: "a/b", Name: "c", Kind: "d"}
	second := Key{Service: "a", Name: "c", Kind: "b/d"}
	require.Equal(t, first.String(), second.String())

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan *fakeType, 1)
	go func() {
		v, err := reg.GetOrBuild(first, func() (*fakeType, error) {
			close(started)
			<-release
			return &fakeType{name: "first"}, nil
		})
		assert.NoError(t, err)
		done <- v
	}()

	<-started
	v, err := reg.GetOrBuild(second, func() (*fakeType, error) { return &fakeType{name: "second"}, nil })
	require.NoError(t, err)
	assert.Equal(t, "second", v.name)

	close(release)
	assert.Equal(t, "first", (<-done).name)
	assert.Equal(t, 2, reg.Len())
}
