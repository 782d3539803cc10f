package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherFiresOnMarkdownChange(t *testing.T) {
	dir := t.TempDir()
	fired := make(chan struct{}, 1)

	w := New(dir, 50*time.Millisecond, func(ctx context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond) // let the watch register
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spec.md"), []byte("body\n"), 0o644))

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("no sync fired for a markdown write")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcherIgnoresNonMarkdown(t *testing.T) {
	dir := t.TempDir()
	var fires atomic.Int32

	w := New(dir, 50*time.Millisecond, func(ctx context.Context) error {
		fires.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.md"), []byte("x"), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, fires.Load())
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	var fires atomic.Int32

	w := New(dir, 150*time.Millisecond, func(ctx context.Context) error {
		fires.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	path := filepath.Join(dir, "spec.md")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("rev\n"), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return fires.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), fires.Load(), "a write burst collapses into one sync")
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	fired := make(chan struct{}, 1)

	w := New(dir, 50*time.Millisecond, func(ctx context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	sub := filepath.Join(dir, "specs")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond) // let the new watch register
	require.NoError(t, os.WriteFile(filepath.Join(sub, "auth.md"), []byte("body\n"), 0o644))

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("no sync fired for a file in a newly created directory")
	}
}
