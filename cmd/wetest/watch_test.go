package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatchLoop_ChecksAgainOnChange(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "s.yaml")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(watched, []byte("a"), 0o644))

	w, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer w.Close()
	// watched before the loop starts so early writes are not missed
	require.NoError(t, w.Add(dir))

	calls := make(chan struct{}, 10)
	check := func() []string {
		calls <- struct{}{}
		return []string{watched}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watchLoop(ctx, w, 100*time.Millisecond, check, zap.NewNop()) }()

	wait := func(msg string) {
		t.Helper()
		select {
		case <-calls:
		case <-time.After(5 * time.Second):
			t.Fatal(msg)
		}
	}
	wait("initial check not run")

	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(watched, []byte("b"), 0o644))
	wait("change not noticed")

	select {
	case <-calls:
		t.Fatal("writes to other files or repeated events should not check again")
	case <-time.After(400 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch loop did not stop")
	}
}

func TestRefresh_ReturnsIncludedFiles(t *testing.T) {
	a := &app{logger: zap.NewNop()}
	var out nopWriter
	files, err := a.refresh(out, []string{fixtures + "suite.yaml"}, "")
	require.NoError(t, err)
	require.Len(t, files, 4)
	require.Equal(t, "motor.yaml", filepath.Base(files[2]))
	require.Equal(t, "vacuum.yaml", filepath.Base(files[3]))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
