package runlock

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathSanitizesEnvironment(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, "env-1.lock"), Path(dir, "env-1"))
	assert.Equal(t, filepath.Join(dir, "a_b_c.lock"), Path(dir, "a/b c"))
	assert.Equal(t, filepath.Join(dir, "default.lock"), Path(dir, ""))
}

func TestDirHonorsXDGCache(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", xdg)
	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(xdg, "ferry"), dir)
}

func TestAcquireCreatesDirectoryAndReleases(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	l := New(dir, "env-1")
	require.NoError(t, l.Acquire(context.Background(), time.Second))
	assert.FileExists(t, l.Path())
	require.NoError(t, l.Release())
	require.NoError(t, l.Release(), "second release is a no-op")
}

func TestSecondHolderTimesOut(t *testing.T) {
	dir := t.TempDir()
	first := New(dir, "env-1")
	require.NoError(t, first.Acquire(context.Background(), 0))
	defer first.Release()

	second := New(dir, "env-1")
	err := second.Acquire(context.Background(), 120*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked by another ferry run")

	err = second.Acquire(context.Background(), 0)
	require.Error(t, err)

	other := New(dir, "env-2")
	require.NoError(t, other.Acquire(context.Background(), 0), "environments lock independently")
	require.NoError(t, other.Release())
}

func TestAcquireWaitsForRelease(t *testing.T) {
	dir := t.TempDir()
	first := New(dir, "env-1")
	require.NoError(t, first.Acquire(context.Background(), 0))
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = first.Release()
	}()

	second := New(dir, "env-1")
	require.NoError(t, second.Acquire(context.Background(), 5*time.Second))
	require.NoError(t, second.Release())
}

func TestAcquireHonorsCancellation(t *testing.T) {
	dir := t.TempDir()
	first := New(dir, "env-1")
	require.NoError(t, first.Acquire(context.Background(), 0))
	defer first.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(dir, "env-1").Acquire(ctx, time.Minute)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestWith(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	ran := false
	err := With(context.Background(), "env-1", time.Second, func() error {
		ran = true
		// The lock is held while fn runs.
		dir, err := Dir()
		require.NoError(t, err)
		locked, err := New(dir, "env-1").TryAcquire()
		require.NoError(t, err)
		assert.False(t, locked)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	boom := errors.New("boom")
	assert.ErrorIs(t, With(context.Background(), "env-1", time.Second, func() error { return boom }), boom)
}
