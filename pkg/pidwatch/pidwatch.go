// SPDX-License-Identifier: BSD-3-Clause

// Package pidwatch watches a directory of per-adapter PID files
// (bluetoothN.pid) and translates their creation and removal into
// DaemonStarted/DaemonStopped events, per spec §4.4. It is the one package
// in this module built on a directory-watch library rather than a raw
// syscall, since the reference pack's own dependency set already pulls in
// fsnotify transitively (see DESIGN.md).
package pidwatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
)

const fileSuffix = ".pid"
const filePrefix = "bluetooth"

// Emitter receives the events the watcher produces.
type Emitter interface {
	DaemonStarted(ctx context.Context, hci, pid int)
	DaemonStopped(ctx context.Context, hci int)
}

// Watcher watches Dir for bluetoothN.pid create/remove events.
type Watcher struct {
	dir     string
	emitter Emitter
	logger  *slog.Logger
}

// New returns a Watcher over dir. dir must already exist.
func New(dir string, emitter Emitter, logger *slog.Logger) *Watcher {
	return &Watcher{dir: dir, emitter: emitter, logger: logger}
}

// Run enumerates the PID files already present, emitting DaemonStarted for
// each, then watches dir for further changes until ctx is canceled or the
// watch fails. A watch failure is fatal, per spec §4.4.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("pidwatch: new watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("pidwatch: watch %s: %w", w.dir, err)
	}

	w.scanExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("pidwatch: watcher closed")
			}
			w.handle(ctx, ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("pidwatch: watcher error channel closed")
			}
			return fmt.Errorf("pidwatch: watch error: %w", err)
		}
	}
}

func (w *Watcher) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.WarnContext(ctx, "pidwatch: initial scan failed", "dir", w.dir, "error", err)
		return
	}
	for _, entry := range entries {
		hci, ok := parseHCI(entry.Name())
		if !ok {
			continue
		}
		pid, err := w.readPid(filepath.Join(w.dir, entry.Name()))
		if err != nil {
			w.logger.WarnContext(ctx, "pidwatch: reading pid file failed", "hci", hci, "error", err)
			continue
		}
		w.emitter.DaemonStarted(ctx, hci, pid)
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	hci, ok := parseHCI(filepath.Base(ev.Name))
	if !ok {
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		pid, err := w.readPid(ev.Name)
		if err != nil {
			w.logger.WarnContext(ctx, "pidwatch: reading pid file failed", "hci", hci, "error", err)
			return
		}
		w.emitter.DaemonStarted(ctx, hci, pid)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.emitter.DaemonStopped(ctx, hci)
	}
}

// readPid reads the PID file body as an ASCII integer. Per spec §4.4, a
// body that fails to parse is reported as pid 0 rather than an error.
func (w *Watcher) readPid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, nil
	}
	return pid, nil
}

// parseHCI extracts N from a "bluetoothN.pid" filename. Any other name is
// silently ignored, per spec §4.4.
func parseHCI(name string) (int, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return 0, false
	}
	mid := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	hci, err := strconv.Atoi(mid)
	if err != nil {
		return 0, false
	}
	return hci, true
}
