package watch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logrus.Entry {
	log := logrus.New()
	log.Out = io.Discard
	return logrus.NewEntry(log)
}

func startWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	cfg := DefaultWatcherConfig(root)
	cfg.Debounce = 10 * time.Millisecond

	w, err := NewWatcher(cfg, testLog())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	return w
}

// waitFor collects events until one for path arrives.
func waitFor(t *testing.T, w *Watcher, path string) []FileEvent {
	t.Helper()
	var seen []FileEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			seen = append(seen, ev)
			if ev.Path == path {
				return seen
			}
		case <-timeout:
			t.Fatalf("no event for %s, got %v", path, seen)
		}
	}
}

func TestWatcherReportsChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bin"), 0755))
	w := startWatcher(t, root)
	assert.True(t, w.IsRunning())

	tool := filepath.Join(root, "bin", "tool")
	require.NoError(t, os.WriteFile(tool, []byte("v1"), 0755))
	waitFor(t, w, tool)
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	pkg := filepath.Join(root, "lib", "python3.12", "site-packages")
	require.NoError(t, os.MkdirAll(pkg, 0755))
	// Give the watcher time to register the new directories.
	waitFor(t, w, filepath.Join(root, "lib"))
	time.Sleep(50 * time.Millisecond)

	mod := filepath.Join(pkg, "mod.py")
	require.NoError(t, os.WriteFile(mod, []byte("x = 1"), 0644))
	waitFor(t, w, mod)
}

func TestWatcherIgnoresPatterns(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "conda-meta"), 0755))
	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "mod.pyc"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "conda-meta", "history"), []byte("x"), 0644))

	sentinel := filepath.Join(root, "conda-meta", "pkg.json")
	require.NoError(t, os.WriteFile(sentinel, []byte("{}"), 0644))

	for _, ev := range waitFor(t, w, sentinel) {
		assert.NotEqual(t, ".pyc", filepath.Ext(ev.Path))
		assert.NotEqual(t, "history", filepath.Base(ev.Path))
	}
}

func TestShouldIgnore(t *testing.T) {
	w := &Watcher{config: DefaultWatcherConfig("/opt/envs/demo")}

	scenarios := []struct {
		path   string
		ignore bool
	}{
		{"/opt/envs/demo/bin/python", false},
		{"/opt/envs/demo/.git/HEAD", true},
		{"/opt/envs/demo/lib/__pycache__/mod.cpython-312.pyc", true},
		{"/opt/envs/demo/lib/mod.pyc", true},
		{"/opt/envs/demo/conda-meta/history", true},
		{"/opt/envs/demo/conda-meta/numpy.json", false},
		{"/opt/envs/demo/share/history", false},
	}

	for _, s := range scenarios {
		t.Run(s.path, func(t *testing.T) {
			assert.Equal(t, s.ignore, w.shouldIgnore(s.path))
		})
	}
}

func TestStopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(DefaultWatcherConfig(t.TempDir()), testLog())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
	assert.False(t, w.IsRunning())
	assert.NoError(t, w.Stop())
}

func TestFileEventTypeString(t *testing.T) {
	assert.Equal(t, "created", FileEventCreated.String())
	assert.Equal(t, "modified", FileEventModified.String())
	assert.Equal(t, "deleted", FileEventDeleted.String())
	assert.Equal(t, "renamed", FileEventRenamed.String())
	assert.Equal(t, "unknown", FileEventType(0).String())
}

type recorder struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (r *recorder) rebuild(_ context.Context, changed []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, changed)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder) call(i int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[i]
}

func TestLoopBatchesChanges(t *testing.T) {
	rec := &recorder{}
	events := make(chan FileEvent)
	errs := make(chan error)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error)
	go func() {
		done <- NewLoop(testLog(), 50*time.Millisecond, rec.rebuild).Run(ctx, events, errs)
	}()

	require.Eventually(t, func() bool { return rec.count() == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Empty(t, rec.call(0))

	events <- FileEvent{Path: "/env/b"}
	events <- FileEvent{Path: "/env/a"}
	events <- FileEvent{Path: "/env/b"}
	errs <- errors.New("queue overflow")

	require.Eventually(t, func() bool { return rec.count() == 2 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"/env/a", "/env/b"}, rec.call(1))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoopSurvivesRebuildFailure(t *testing.T) {
	rec := &recorder{err: errors.New("BUILD failed")}
	events := make(chan FileEvent)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error)
	go func() {
		done <- NewLoop(testLog(), 10*time.Millisecond, rec.rebuild).Run(ctx, events, nil)
	}()

	events <- FileEvent{Path: "/env/a"}
	require.Eventually(t, func() bool { return rec.count() == 2 }, 5*time.Second, 5*time.Millisecond)

	close(events)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
}
