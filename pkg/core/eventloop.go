// SPDX-License-Identifier: BSD-3-Clause

package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/btmgrd/btadapterd/pkg/fsm"
)

// EventQueueCapacity is the event queue's bounded capacity, per spec §4.5
// ("intentionally small to surface backpressure quickly").
const EventQueueCapacity = 10

// SendTimeout bounds how long Send will wait for room in the queue before
// treating the send as a fatal deadlock signal, per spec §4.5/§9.
const SendTimeout = 3 * time.Second

// EventLoop is the single consumer of the event queue described in spec
// §4.5. It owns no state of its own beyond the queue and its collaborators
// — AdapterTable and the global scalars live in StateCore, which EventLoop
// drives exclusively from this one goroutine.
type EventLoop struct {
	sc      *StateCore
	timeout *CommandTimeout
	pm      ProcessManager
	reset   HciReset
	sink    NotificationSink
	logger  *slog.Logger

	queue chan Event

	tracer    trace.Tracer
	histogram metric.Float64Histogram
}

// NewEventLoop wires an EventLoop over the given collaborators. The loop's
// internal CommandTimeout is already configured to push on_timeout events
// back into this loop's queue on expiry; callers should not construct
// their own CommandTimeout.
func NewEventLoop(sc *StateCore, pm ProcessManager, reset HciReset, sink NotificationSink, logger *slog.Logger) *EventLoop {
	el := &EventLoop{
		sc:     sc,
		pm:     pm,
		reset:  reset,
		sink:   sink,
		logger: logger,
		queue:  make(chan Event, EventQueueCapacity),
		tracer: otel.Tracer("btadapterd/core"),
	}

	hist, err := otel.Meter("btadapterd/core").Float64Histogram(
		"btadapterd.eventloop.turn_duration_seconds",
		metric.WithDescription("Duration of a single EventLoop turn"),
	)
	if err != nil {
		hist, _ = noopMeter().Float64Histogram("btadapterd.eventloop.turn_duration_seconds")
	}
	el.histogram = hist

	el.timeout = NewCommandTimeout(DefaultCommandTimeoutDuration, func(hci int) {
		// Called from the timer's own goroutine (spec §4.2). A background
		// context is correct here: there is no caller request to inherit
		// cancellation from.
		if err := el.Send(context.Background(), Event{Kind: EventTimeout, HCI: hci}); err != nil {
			el.logger.Error("failed to enqueue expired timeout", "hci", hci, "error", err)
		}
	})

	return el
}

func noopMeter() metric.Meter {
	return otel.GetMeterProvider().Meter("btadapterd/core/noop")
}

// Send performs the bounded send described in spec §4.5. Exceeding
// SendTimeout is a programming error (queue backpressure means the
// EventLoop is stuck) and is treated as fatal by panicking, matching
// spec §9's explicit instruction to preserve this behavior.
func (e *EventLoop) Send(ctx context.Context, ev Event) error {
	select {
	case e.queue <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(SendTimeout):
		panic(fmt.Errorf("%w: event kind %s for hci %d", ErrQueueBackpressure, ev.Kind, ev.HCI))
	}
}

// Close stops accepting new events, causing Run to return once the queue
// drains.
func (e *EventLoop) Close() {
	close(e.queue)
}

// RequestStart enqueues a StartAdapter request, per spec §2's "external
// start/stop requests" event source. Any out-of-scope RPC surface (spec
// §1) is expected to call this rather than touch StateCore directly.
func (e *EventLoop) RequestStart(ctx context.Context, hci int) error {
	return e.Send(ctx, Event{Kind: EventStartAdapter, HCI: hci})
}

// RequestStop enqueues a StopAdapter request.
func (e *EventLoop) RequestStop(ctx context.Context, hci int) error {
	return e.Send(ctx, Event{Kind: EventStopAdapter, HCI: hci})
}

// RequestSetDesiredDefaultAdapter enqueues a SetDesiredDefaultAdapter
// request.
func (e *EventLoop) RequestSetDesiredDefaultAdapter(ctx context.Context, hci int) error {
	return e.Send(ctx, Event{Kind: EventSetDesiredDefaultAdapter, HCI: hci})
}

// Run consumes events until ctx is canceled or the queue is closed and
// drained. A queue-backpressure panic raised on Run's own goroutine is
// recovered and returned as an error. Send panics on the producer's
// goroutine, so a panic in a producer running on another goroutine is not
// caught here.
func (e *EventLoop) Run(ctx context.Context) (err error) {
	defer e.timeout.Stop()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrQueueBackpressure, r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-e.queue:
			if !ok {
				return nil
			}
			e.processTurn(ctx, ev)
		}
	}
}

func (e *EventLoop) processTurn(ctx context.Context, ev Event) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "eventloop.turn", trace.WithAttributes(
		attribute.String("event.kind", ev.Kind.String()),
		attribute.Int("event.hci", ev.HCI),
	))
	defer span.End()

	if err := e.processEvent(ctx, ev); err != nil {
		span.RecordError(err)
		e.logger.ErrorContext(ctx, "event processing failed", "kind", ev.Kind.String(), "hci", ev.HCI, "error", err)
	}

	e.histogram.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("event.kind", ev.Kind.String()),
	))
}

// processEvent is the seven-step turn from spec §4.5.
func (e *EventLoop) processEvent(ctx context.Context, ev Event) error {
	// 1. Record previous state.
	var prevState fsm.State
	if a, ok := e.sc.Table().Get(ev.HCI); ok {
		prevState = a.State(ctx)
	}

	// 2. Invoke the corresponding StateCore operation.
	result, err := e.invoke(ctx, ev)
	if err != nil {
		return err
	}

	// 3. Apply TimeoutAction to CommandTimeout.
	switch result.Timeout {
	case ResetTimer:
		e.timeout.SetNext(ev.HCI)
	case CancelTimer:
		e.timeout.Cancel(ev.HCI)
	}

	// 4. Apply ProcessAction via ProcessManager or HciReset.
	e.applyProcessAction(ctx, result.Process)

	// 5. If DefaultAdapterAction is NewDefault(n): update default_adapter, notify sink.
	if result.DefaultAdapter.Changed {
		e.sc.SetDefaultAdapter(result.DefaultAdapter.HCI)
		e.sink.DefaultAdapterChange(ctx, result.DefaultAdapter.HCI)
	}

	// 6. For presence events, notify sink of presence change.
	if ev.Kind == EventPresenceChanged {
		e.sink.PresenceChange(ctx, ev.HCI, ev.Present)
	}

	// 7. If prev_state != next_state AND either side equals On, notify sink of enabled-change.
	nextState := prevState
	if a, ok := e.sc.Table().Get(ev.HCI); ok {
		nextState = a.State(ctx)
	}
	if prevState != nextState && (prevState == StateOn || nextState == StateOn) {
		e.sink.EnabledChange(ctx, ev.HCI, nextState == StateOn)
	}

	return nil
}

func (e *EventLoop) invoke(ctx context.Context, ev Event) (Result, error) {
	switch ev.Kind {
	case EventStartAdapter:
		return e.sc.StartAdapter(ctx, ev.HCI), nil
	case EventStopAdapter:
		return e.sc.StopAdapter(ctx, ev.HCI), nil
	case EventDaemonStarted:
		return e.sc.OnDaemonStarted(ctx, ev.Pid, ev.HCI), nil
	case EventDaemonStopped:
		return e.sc.OnDaemonStopped(ctx, ev.HCI), nil
	case EventTimeout:
		return e.sc.OnTimeout(ctx, ev.HCI), nil
	case EventPresenceChanged:
		return e.sc.OnPresenceChanged(ctx, ev.HCI, ev.Present), nil
	case EventSetDesiredDefaultAdapter:
		return e.sc.SetDesiredDefaultAdapter(ctx, ev.HCI), nil
	default:
		return Result{}, fmt.Errorf("%w: kind %v", ErrInvalidEvent, ev.Kind)
	}
}

func (e *EventLoop) applyProcessAction(ctx context.Context, pa ProcessAction) {
	switch pa.Kind {
	case NoProcessAction:
		return
	case StartProcess:
		if err := e.pm.Start(ctx, pa.HCI); err != nil {
			e.logger.ErrorContext(ctx, "process start failed", "hci", pa.HCI, "error", err)
		}
	case StopProcess:
		if err := e.pm.Stop(ctx, pa.HCI); err != nil {
			e.logger.ErrorContext(ctx, "process stop failed", "hci", pa.HCI, "error", err)
		}
	case StopThenStartProcess:
		if err := e.pm.Stop(ctx, pa.HCI); err != nil {
			e.logger.ErrorContext(ctx, "process stop failed", "hci", pa.HCI, "error", err)
		}
		if err := e.pm.Start(ctx, pa.HCI); err != nil {
			e.logger.ErrorContext(ctx, "process start failed", "hci", pa.HCI, "error", err)
		}
	case ResetDevice:
		if err := e.reset.Reset(ctx, pa.HCI); err != nil {
			e.logger.ErrorContext(ctx, "hci reset failed", "hci", pa.HCI, "error", err)
		}
	}
}
