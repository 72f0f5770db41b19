// SPDX-License-Identifier: BSD-3-Clause

// Package hcireset implements core.HciReset with the kernel's HCIDEVRESET
// ioctl, grounded on the reference pack's hand-rolled HCI ioctl request
// numbers (linux/hci/socket/socket.go), the same pattern pkg/mgmt uses for
// HCIGETDEVINFO.
package hcireset

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"
)

const (
	ioctlSize = 4
	typHCI    = 72 // 'H'
)

func ioW(nr uintptr) uintptr { return (1 << 30) | (typHCI << 8) | nr | (ioctlSize << 16) }

var hciDevReset = ioW(203) // HCIDEVRESET, _IOW('H', 203, int)

// Resetter resets a controller by HCI index via HCIDEVRESET. It is the
// default core.HciReset implementation (spec §4.1.5's reset_on_restart_count
// branch).
type Resetter struct{}

// New returns a Resetter.
func New() *Resetter { return &Resetter{} }

// Reset issues HCIDEVRESET for hci. ctx is accepted for interface symmetry
// with the rest of core's collaborators; the ioctl itself is synchronous
// and uninterruptible.
func (r *Resetter) Reset(ctx context.Context, hci int) error {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW, unix.BTPROTO_HCI)
	if err != nil {
		return fmt.Errorf("hcireset: open control socket: %w", err)
	}
	defer unix.Close(fd)

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), hciDevReset, uintptr(hci)); errno != 0 {
		return fmt.Errorf("hcireset: hcidevreset hci%d: %w", hci, errno)
	}
	return nil
}
