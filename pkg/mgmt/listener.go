// SPDX-License-Identifier: BSD-3-Clause

package mgmt

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// IndexRemovedDebounce is the 150ms debounce window from spec §4.3.
const IndexRemovedDebounce = 150 * time.Millisecond

const readBufferSize = 1024

// Emitter receives the translated events the listener produces.
type Emitter interface {
	PresenceChange(ctx context.Context, hci int, present bool)
	StartAdapterRequest(ctx context.Context, hci int)
}

// ConfigChecker answers the configuration questions the listener needs:
// whether floss is enabled at all, whether a specific HCI is enabled, and
// (for the IndexRemoved debounce) whether the kernel still reports a
// device as present.
type ConfigChecker interface {
	IsFlossEnabled(ctx context.Context) (bool, error)
	IsHCIEnabled(ctx context.Context, hci int) (bool, error)
	CheckHCIDeviceExists(ctx context.Context, hci int) (bool, error)
}

// Listener opens the MGMT control channel and translates kernel events
// into Emitter calls, per spec §4.3.
type Listener struct {
	sock     *socket
	emitter  Emitter
	cfg      ConfigChecker
	logger   *slog.Logger
	debounce time.Duration
}

// Open creates and binds the MGMT socket. Per spec §4.3, failure here is
// fatal at startup.
func Open(emitter Emitter, cfg ConfigChecker, logger *slog.Logger) (*Listener, error) {
	sock, err := openSocket()
	if err != nil {
		return nil, err
	}
	return &Listener{
		sock:     sock,
		emitter:  emitter,
		cfg:      cfg,
		logger:   logger,
		debounce: IndexRemovedDebounce,
	}, nil
}

// Close releases the MGMT socket.
func (l *Listener) Close() error {
	return l.sock.close()
}

// Run issues the initial ReadIndexList enumeration and then blocks reading
// and translating events until ctx is canceled or a read fails. A read
// failure is fatal to the listener (spec §4.3: "the supervising process
// exits"), surfaced by returning the error to the caller's service.Service
// wrapper, which oversight will restart.
func (l *Listener) Run(ctx context.Context) error {
	if _, err := l.sock.write(encodeReadIndexList()); err != nil {
		return fmt.Errorf("initial read_index_list: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.sock.close()
		case <-done:
		}
	}()

	buf := make([]byte, readBufferSize)
	for {
		n, err := l.sock.read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("mgmt listener read: %w", err)
		}

		ev, err := decodeEvent(buf[:n])
		if err != nil {
			l.logger.WarnContext(ctx, "mgmt listener: dropping malformed packet", "error", err)
			continue
		}

		l.handle(ctx, ev)
	}
}

func (l *Listener) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case evCmdComplete:
		if ev.indexes == nil {
			return
		}
		l.handleInitialIndexList(ctx, ev.indexes)
	case evIndexAdded:
		l.emitter.PresenceChange(ctx, ev.hci, true)
	case evIndexRemoved:
		l.handleIndexRemoved(ctx, ev.hci)
	}
}

func (l *Listener) handleInitialIndexList(ctx context.Context, indexes []int) {
	floss, err := l.cfg.IsFlossEnabled(ctx)
	if err != nil {
		l.logger.WarnContext(ctx, "mgmt listener: is_floss_enabled failed", "error", err)
	}

	for _, hci := range indexes {
		l.emitter.PresenceChange(ctx, hci, true)

		if !floss {
			continue
		}
		enabled, err := l.cfg.IsHCIEnabled(ctx, hci)
		if err != nil {
			l.logger.WarnContext(ctx, "mgmt listener: is_hci_enabled failed", "hci", hci, "error", err)
			continue
		}
		if enabled {
			l.emitter.StartAdapterRequest(ctx, hci)
		}
	}
}

// handleIndexRemoved implements the 150ms debounce from spec §4.3: a
// userspace application briefly taking exclusive access to the controller
// also produces an IndexRemoved event, which must not be mistaken for
// hardware loss.
func (l *Listener) handleIndexRemoved(ctx context.Context, hci int) {
	go func() {
		timer := time.NewTimer(l.debounce)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		exists, err := l.cfg.CheckHCIDeviceExists(ctx, hci)
		if err != nil {
			l.logger.WarnContext(ctx, "mgmt listener: check_hci_device_exists failed", "hci", hci, "error", err)
			return
		}
		if !exists {
			l.emitter.PresenceChange(ctx, hci, false)
		}
	}()
}
