package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_RerunsOnChange(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- NewWatcher(zerolog.Nop(), 20*time.Millisecond).Watch(ctx, []string{dir}, func(context.Context) error {
			calls <- struct{}{}
			return nil
		})
	}()

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("initial run did not happen")
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "finding.json"), []byte(`{"policy": "p"}`), 0o644))

	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("change did not trigger a rerun")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}

func TestWatcher_NothingToWatch(t *testing.T) {
	err := NewWatcher(zerolog.Nop(), 0).Watch(context.Background(), []string{filepath.Join(t.TempDir(), "absent")}, func(context.Context) error {
		return nil
	})
	assert.Error(t, err)
}

func TestWatcher_FirstRunErrorEndsWatch(t *testing.T) {
	boom := errors.New("results unreadable")
	calls := 0
	err := NewWatcher(zerolog.Nop(), 0).Watch(context.Background(), []string{t.TempDir()}, func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
