// SPDX-License-Identifier: BSD-3-Clause

package pidwatch_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/btmgrd/btadapterd/pkg/pidwatch"
)

type event struct {
	kind string // "started" or "stopped"
	hci  int
	pid  int
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []event
}

func (f *fakeEmitter) DaemonStarted(_ context.Context, hci, pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event{kind: "started", hci: hci, pid: pid})
}

func (f *fakeEmitter) DaemonStopped(_ context.Context, hci int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event{kind: "stopped", hci: hci})
}

func (f *fakeEmitter) snapshot() []event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]event, len(f.events))
	copy(out, f.events)
	return out
}

func waitForEvents(t *testing.T, f *fakeEmitter, n int, timeout time.Duration) []event {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if evs := f.snapshot(); len(evs) >= n {
			return evs
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, got %d", n, len(f.snapshot()))
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatcher_EnumeratesExistingFilesOnStartup(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bluetooth0.pid"), []byte("1234\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bluetooth1.pid"), []byte("5678"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "not-a-pid-file.txt"), []byte("noise"), 0o644))

	emitter := &fakeEmitter{}
	w := pidwatch.New(dir, emitter, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	evs := waitForEvents(t, emitter, 2, 2*time.Second)

	byHCI := map[int]event{}
	for _, e := range evs {
		byHCI[e.hci] = e
	}
	require.Equal(t, 1234, byHCI[0].pid)
	require.Equal(t, 5678, byHCI[1].pid)
}

func TestWatcher_CreateAndDeleteEmitStartedAndStopped(t *testing.T) {
	dir := t.TempDir()
	emitter := &fakeEmitter{}
	w := pidwatch.New(dir, emitter, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond) // let the watcher register before writing

	path := filepath.Join(dir, "bluetooth2.pid")
	require.NoError(t, os.WriteFile(path, []byte("42"), 0o644))

	evs := waitForEvents(t, emitter, 1, 2*time.Second)
	require.Equal(t, "started", evs[0].kind)
	require.Equal(t, 2, evs[0].hci)
	require.Equal(t, 42, evs[0].pid)

	require.NoError(t, os.Remove(path))

	evs = waitForEvents(t, emitter, 2, 2*time.Second)
	require.Equal(t, "stopped", evs[1].kind)
	require.Equal(t, 2, evs[1].hci)
}

func TestWatcher_UnparseableFileNameIsIgnored(t *testing.T) {
	dir := t.TempDir()
	emitter := &fakeEmitter{}
	w := pidwatch.New(dir, emitter, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bluetoothX.pid"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bluetooth3.pid"), []byte("99"), 0o644))

	evs := waitForEvents(t, emitter, 1, 2*time.Second)
	require.Len(t, evs, 1)
	require.Equal(t, 3, evs[0].hci)
}

func TestWatcher_UnparseablePidBodyReportsZero(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bluetooth4.pid"), []byte("not-a-number"), 0o644))

	emitter := &fakeEmitter{}
	w := pidwatch.New(dir, emitter, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	evs := waitForEvents(t, emitter, 1, 2*time.Second)
	require.Equal(t, 0, evs[0].pid)
}
