// SPDX-License-Identifier: BSD-3-Clause

// Package bus provides an embedded NATS server exposing the four
// notification events (enabled_change, presence_change,
// default_adapter_change, client_disconnected) from spec §7, plus a
// publishing core.NotificationSink and a Noop sink for tests. Adapted from
// the reference pack's service/ipc package (an embedded
// nats-server/v2 instance handed out via nats.InProcessConnProvider),
// trimmed of its JetStream persistence layer: these notifications are
// fire-and-forget broadcasts, not a durable log.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/btmgrd/btadapterd/service"
)

var _ service.Service = (*Bus)(nil)

// Bus runs an embedded NATS server used as the in-process notification
// transport between the event loop and any connected management clients.
type Bus struct {
	cfg    *config
	server *server.Server
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates a Bus with the given options applied over the defaults.
func New(opts ...Option) *Bus {
	cfg := &config{
		serviceName:     DefaultServiceName,
		serverName:      DefaultServerName,
		dontListen:      true,
		startupTimeout:  DefaultStartupTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
		maxPayload:      1048576,
	}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	return &Bus{cfg: cfg}
}

// Name implements service.Service.
func (b *Bus) Name() string { return b.cfg.serviceName }

// Run implements service.Service: it starts the embedded NATS server and
// blocks until ctx is canceled.
func (b *Bus) Run(ctx context.Context, ipcConn nats.InProcessConnProvider) error {
	b.tracer = otel.Tracer(b.cfg.serviceName)
	ctx, span := b.tracer.Start(ctx, "Run")
	defer span.End()

	if b.logger == nil {
		b.logger = slog.Default().With("service", b.cfg.serviceName)
	}

	if ipcConn != nil {
		err := fmt.Errorf("bus: existing IPC connection provided, bailing out")
		span.RecordError(err)
		return err
	}

	ns, err := server.NewServer(b.cfg.toServerOptions())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", ErrServerCreationFailed, err)
	}
	b.server = ns

	b.logger.InfoContext(ctx, "starting notification bus", "server_name", b.cfg.serverName)
	b.server.Start()

	if !b.server.ReadyForConnections(b.cfg.startupTimeout) {
		b.server.Shutdown()
		err := fmt.Errorf("%w: not ready within %v", ErrServerTimeout, b.cfg.startupTimeout)
		span.RecordError(err)
		return err
	}

	span.SetAttributes(
		attribute.String("service.name", b.cfg.serviceName),
		attribute.String("server.id", b.server.ID()),
	)

	<-ctx.Done()
	return b.shutdown(ctx)
}

func (b *Bus) shutdown(ctx context.Context) error {
	err := ctx.Err()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cfg.shutdownTimeout)
	defer cancel()

	b.logger.InfoContext(shutdownCtx, "shutting down notification bus")
	b.server.LameDuckShutdown()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.server.Shutdown()
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		b.logger.WarnContext(shutdownCtx, "notification bus shutdown timed out")
	}
	return err
}

// ConnProvider returns a nats.InProcessConnProvider backed by this Bus,
// for other services (and, eventually, connected management clients) to
// obtain an in-process connection.
func (b *Bus) ConnProvider() *ConnProvider {
	timeout := time.Now().Add(b.cfg.startupTimeout)
	for b.server == nil && time.Now().Before(timeout) {
		time.Sleep(time.Millisecond)
	}
	return &ConnProvider{server: b.server}
}
