// SPDX-License-Identifier: BSD-3-Clause

package mgmt

import "errors"

var (
	// ErrSocketOpen indicates the MGMT socket could not be opened or
	// bound. Spec §4.3: fatal at startup.
	ErrSocketOpen = errors.New("mgmt socket open/bind failed")
	// ErrSocketClosed indicates an operation was attempted on a closed
	// socket.
	ErrSocketClosed = errors.New("mgmt socket closed")
	// ErrMalformedPacket indicates a packet from the kernel could not be
	// parsed as a valid MGMT header/event.
	ErrMalformedPacket = errors.New("malformed mgmt packet")
)
