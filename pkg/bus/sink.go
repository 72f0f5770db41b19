// SPDX-License-Identifier: BSD-3-Clause

package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Subjects the Sink publishes to, one per spec §7 notification.
const (
	SubjectEnabledChange        = "btadapterd.enabled_change"
	SubjectPresenceChange       = "btadapterd.presence_change"
	SubjectDefaultAdapterChange = "btadapterd.default_adapter_change"
	SubjectClientDisconnected   = "btadapterd.client_disconnected"
)

// Sink publishes core.NotificationSink events onto the bus as JSON
// payloads. It implements core.NotificationSink.
type Sink struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewSink connects to a Bus via its ConnProvider and returns a publishing
// Sink.
func NewSink(provider nats.InProcessConnProvider, logger *slog.Logger) (*Sink, error) {
	nc, err := nats.Connect("", nats.InProcessServer(provider))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInProcessConnFailed, err)
	}
	return &Sink{conn: nc, logger: logger}, nil
}

type enabledChangePayload struct {
	HCI     int  `json:"hci"`
	Enabled bool `json:"enabled"`
}

type presenceChangePayload struct {
	HCI     int  `json:"hci"`
	Present bool `json:"present"`
}

type defaultAdapterChangePayload struct {
	HCI int `json:"hci"`
}

type clientDisconnectedPayload struct {
	CallbackID string `json:"callback_id"`
}

// EnabledChange implements core.NotificationSink.
func (s *Sink) EnabledChange(ctx context.Context, hci int, enabled bool) {
	s.publish(ctx, SubjectEnabledChange, enabledChangePayload{HCI: hci, Enabled: enabled})
}

// PresenceChange implements core.NotificationSink.
func (s *Sink) PresenceChange(ctx context.Context, hci int, present bool) {
	s.publish(ctx, SubjectPresenceChange, presenceChangePayload{HCI: hci, Present: present})
}

// DefaultAdapterChange implements core.NotificationSink.
func (s *Sink) DefaultAdapterChange(ctx context.Context, hci int) {
	s.publish(ctx, SubjectDefaultAdapterChange, defaultAdapterChangePayload{HCI: hci})
}

// ClientDisconnected implements core.NotificationSink.
func (s *Sink) ClientDisconnected(ctx context.Context, callbackID string) {
	s.publish(ctx, SubjectClientDisconnected, clientDisconnectedPayload{CallbackID: callbackID})
}

func (s *Sink) publish(ctx context.Context, subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WarnContext(ctx, "bus: marshal notification failed", "subject", subject, "error", err)
		return
	}
	if err := s.conn.Publish(subject, data); err != nil {
		s.logger.WarnContext(ctx, "bus: publish failed", "subject", subject, "error", err)
	}
}

// Noop is a core.NotificationSink that discards every event. Used by
// hosts that don't want the bus and by tests.
type Noop struct{}

// EnabledChange implements core.NotificationSink.
func (Noop) EnabledChange(context.Context, int, bool) {}

// PresenceChange implements core.NotificationSink.
func (Noop) PresenceChange(context.Context, int, bool) {}

// DefaultAdapterChange implements core.NotificationSink.
func (Noop) DefaultAdapterChange(context.Context, int) {}

// ClientDisconnected implements core.NotificationSink.
func (Noop) ClientDisconnected(context.Context, string) {}
