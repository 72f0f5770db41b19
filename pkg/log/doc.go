// SPDX-License-Identifier: BSD-3-Clause

// Package log provides structured logging functionality with multi-target output
// support for console and OpenTelemetry observability. The package integrates
// multiple logging libraries to provide a unified interface that outputs
// human-readable logs to the console while simultaneously sending structured
// telemetry data to OpenTelemetry for distributed tracing and monitoring.
//
// The package is built around Go's standard library slog package and provides
// adapters for various logging systems including NATS server logging and
// oversight process supervisor logging. This allows for consistent structured
// logging across the HCI listener, PID watcher, and event loop.
//
// # Core Features
//
// The package provides several key features:
//
//   - Dual output: Human-readable console logs and structured OpenTelemetry data
//   - Standard library slog integration for structured logging
//   - NATS server logger adapter for consistent logging from the embedded bus
//   - Oversight process supervisor logger integration
//   - Automatic timestamp and debug level configuration
//
// # Basic Usage
//
// Creating and using the default logger:
//
//	logger := log.NewDefaultLogger()
//	logger.Info("adapter manager starting", "version", "1.0.0", "config", "/etc/btadapterd/config.yaml")
//	logger.Debug("debug information", "module", "eventloop", "queue_depth", 3)
//	logger.Error("operation failed", "error", err, "operation", "start_adapter")
//
// Using the global logger:
//
//	log.RedirectStdLog(log.GetGlobalLogger()) // Redirect standard log to use our logger
//
// # Structured Logging
//
// The logger supports structured logging with key-value pairs:
//
//	func (l *eventLoop) handleStateChange(hci int, prev, next string) {
//		logger := log.GetGlobalLogger()
//
//		logger.Info("adapter state changed",
//			"hci", hci,
//			"previous_state", prev,
//			"next_state", next,
//		)
//	}
//
// # NATS Server Integration
//
// Using the NATS logger adapter for consistent logging from the embedded bus:
//
//	func setupBus() (*server.Server, error) {
//		logger := log.GetGlobalLogger()
//		natsLogger := log.NewNATSLogger(logger)
//
//		opts := &server.Options{
//			Host:   "127.0.0.1",
//			Port:   -1,
//		}
//
//		srv, err := server.NewServer(opts)
//		if err != nil {
//			return nil, fmt.Errorf("failed to create embedded bus: %w", err)
//		}
//		srv.SetLogger(natsLogger, false, false)
//
//		go srv.Start()
//
//		return srv, nil
//	}
//
// # Oversight Integration
//
// Wiring the oversight supervision tree logger:
//
//	supervisionTree := oversight.New(
//		oversight.NeverHalt(),
//		oversight.DefaultRestartStrategy(),
//		oversight.WithLogger(log.NewOversightLogger(log.GetGlobalLogger())),
//	)
//
// # Thread Safety
//
// All logger instances are safe for concurrent use from multiple goroutines.
// The underlying slog and zerolog implementations handle concurrent access
// appropriately. This matters because HciListener, PidWatcher, and the
// EventLoop all log concurrently from distinct goroutines.
package log
