package am

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestWatcher(t *testing.T, path string) *ConfigWatcher {
	t.Helper()
	cw, err := NewConfigWatcher([]string{path}, func() (*Config, error) {
		return LoadFromFile(path)
	}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	cw.debouncePeriod = 10 * time.Millisecond
	t.Cleanup(func() { cw.Stop() })
	return cw
}

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "am.toml", "[scheduler]\nbase_capacity = 5\n")

	cw := newTestWatcher(t, path)
	got := make(chan int, 4)
	cw.OnReload(func(cfg *Config) error {
		got <- cfg.Scheduler.BaseCapacity
		return nil
	})
	cw.Start()

	// unrelated files in the same directory are ignored
	writeFile(t, dir, "notes.txt", "hello")
	writeFile(t, dir, "am.toml", "[scheduler]\nbase_capacity = 7\n")

	select {
	case n := <-got:
		assert.Equal(t, 7, n)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after config write")
	}
}

func TestConfigWatcher_InvalidConfigSkipsCallbacks(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "am.toml", "[scheduler]\nbase_capacity = 0\n")

	cw := newTestWatcher(t, path)
	called := false
	cw.OnReload(func(*Config) error {
		called = true
		return nil
	})

	assert.Error(t, cw.reload())
	assert.False(t, called)

	writeFile(t, dir, "am.toml", "[scheduler]\nbase_capacity = 2\n")
	require.NoError(t, cw.reload())
	assert.True(t, called)
}

func TestNewConfigWatcher_NothingToWatch(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone", "am.toml")
	_, err := NewConfigWatcher([]string{missing}, ReloadCascade, zaptest.NewLogger(t).Sugar())
	assert.Error(t, err)
}
