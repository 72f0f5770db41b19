// SPDX-License-Identifier: BSD-3-Clause

package mgmt

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl request-number construction, grounded on the reference pack's
// linux/hci/socket/socket.go helpers (ioR/ioW over HCI's ioctl type 'H').
const (
	ioctlSize = 4
	typHCI    = 72 // 'H'
)

func ioR(nr uintptr) uintptr { return (2 << 30) | (typHCI << 8) | nr | (ioctlSize << 16) }

var hciGetDeviceInfo = ioR(211) // HCIGETDEVINFO

type hciDevInfo struct {
	DevID      uint16
	Name       [8]byte
	BDAddr     [6]byte
	Flags      uint32
	Type       uint8
	Features   [8]uint8
	PktType    uint32
	LinkPolicy uint32
	LinkMode   uint32
	ACLMtu     uint16
	ACLPkts    uint16
	ScoMtu     uint16
	ScoPkts    uint16
	_          [80]byte // hci_dev_stats, unused
}

func ioctlGetDeviceInfo(fd, hci int) error {
	req := hciDevInfo{DevID: uint16(hci)}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), hciGetDeviceInfo, uintptr(unsafe.Pointer(&req))); errno != 0 {
		return errno
	}
	return nil
}
