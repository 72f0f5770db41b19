// SPDX-License-Identifier: BSD-3-Clause

package bus

import "errors"

var (
	// ErrServerCreationFailed indicates the embedded NATS server could not
	// be constructed.
	ErrServerCreationFailed = errors.New("failed to create notification bus server")
	// ErrServerTimeout indicates the embedded server did not become ready
	// in time.
	ErrServerTimeout = errors.New("notification bus server startup timeout")
	// ErrServerNotReady indicates the embedded server is not yet accepting
	// connections.
	ErrServerNotReady = errors.New("notification bus server not ready")
	// ErrConnectionNotAvailable indicates no server instance is available
	// to connect to.
	ErrConnectionNotAvailable = errors.New("notification bus connection not available")
	// ErrInProcessConnFailed indicates creating an in-process connection
	// failed.
	ErrInProcessConnFailed = errors.New("failed to create in-process bus connection")
	// ErrPublishFailed indicates a notification could not be published.
	ErrPublishFailed = errors.New("failed to publish notification")
)
