// SPDX-License-Identifier: BSD-3-Clause

package mgmt

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// hciChannelControl is HCI_CHANNEL_CONTROL, the MGMT control channel
// number (bluetooth/hci.h). golang.org/x/sys/unix does not export it by
// name (only HCI_CHANNEL_RAW/HCI_CHANNEL_USER are, which kirbo-ble's
// reference socket code uses for a HCI user channel rather than MGMT), so
// it is declared locally, same as the reference pack declares its own
// ioctl request numbers by hand.
const hciChannelControl = 3

// socket is a thin wrapper around a raw AF_BLUETOOTH/BTPROTO_HCI socket
// bound to the MGMT control channel. Grounded on the reference pack's
// HCI user-channel Socket type (golang.org/x/sys/unix raw socket open,
// mutexed Read/Write, closed channel for Close idempotence), adapted to
// bind HCI_DEV_NONE/HCI_CHANNEL_CONTROL instead of a specific device's
// user channel.
type socket struct {
	fd     int
	closed chan struct{}
	rmu    sync.Mutex
	wmu    sync.Mutex
}

func openSocket() (*socket, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW, unix.BTPROTO_HCI)
	if err != nil {
		return nil, fmt.Errorf("%w: socket: %w", ErrSocketOpen, err)
	}

	sa := &unix.SockaddrHCI{Dev: controlIndex, Channel: hciChannelControl}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("%w: bind: %w", ErrSocketOpen, err)
	}

	return &socket{fd: fd, closed: make(chan struct{})}, nil
}

func (s *socket) read(p []byte) (int, error) {
	select {
	case <-s.closed:
		return 0, ErrSocketClosed
	default:
	}
	s.rmu.Lock()
	defer s.rmu.Unlock()
	n, err := unix.Read(s.fd, p)
	if err != nil {
		return n, fmt.Errorf("mgmt socket read: %w", err)
	}
	return n, nil
}

func (s *socket) write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	n, err := unix.Write(s.fd, p)
	if err != nil {
		return n, fmt.Errorf("mgmt socket write: %w", err)
	}
	return n, nil
}

func (s *socket) close() error {
	select {
	case <-s.closed:
		return nil
	default:
		close(s.closed)
	}
	s.rmu.Lock()
	defer s.rmu.Unlock()
	if err := unix.Close(s.fd); err != nil {
		return fmt.Errorf("mgmt socket close: %w", err)
	}
	return nil
}

// DeviceExists issues a one-shot HCIGETDEVINFO ioctl for hci and reports
// whether the kernel still recognizes the device. Used by the listener's
// IndexRemoved debounce (spec §4.3) by way of ConfigSource.
func DeviceExists(hci int) (bool, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW, unix.BTPROTO_HCI)
	if err != nil {
		return false, fmt.Errorf("%w: socket: %w", ErrSocketOpen, err)
	}
	defer unix.Close(fd)

	err = ioctlGetDeviceInfo(fd, hci)
	if err != nil {
		if err == unix.ENODEV || err == unix.ENOENT {
			return false, nil
		}
		return false, fmt.Errorf("hcigetdevinfo: %w", err)
	}
	return true, nil
}
