package metadata

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsChangedService(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	var mu sync.Mutex
	var reloaded []string

	w, err := NewWatcher([]string{dir}, func(_ context.Context, service string) error {
		mu.Lock()
		defer mu.Unlock()
		reloaded = append(reloaded, service)
		return nil
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sqs-2012-11-05.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`ignored`), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reloaded) > 0
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "sqs", reloaded[0])
	for _, svc := range reloaded {
		assert.Equal(t, "sqs", svc)
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	w, err := NewWatcher([]string{t.TempDir()}, func(context.Context, string) error { return nil })
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w, err := NewWatcher([]string{filepath.Join(t.TempDir(), "missing")}, func(context.Context, string) error { return nil })
	require.NoError(t, err)
	defer w.Stop()

	assert.Error(t, w.Start(context.Background()))
}

func TestDebouncer_CoalescesServices(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	got := make(chan []string, 1)
	d.setCallback(func(services []string) { got <- services })

	d.add("sqs")
	d.add("sns")
	d.add("sqs")

	select {
	case services := <-got:
		assert.Equal(t, []string{"sns", "sqs"}, services)
	case <-time.After(time.Second):
		t.Fatal("debouncer never flushed")
	}

	d.stop()
	d.add("sqs")
	select {
	case <-got:
		t.Fatal("stopped debouncer flushed")
	case <-time.After(60 * time.Millisecond):
	}
}
