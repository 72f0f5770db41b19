// SPDX-License-Identifier: BSD-3-Clause

// Package mgmt implements the Linux Bluetooth MGMT socket wire protocol:
// the small subset of the kernel management channel this manager needs —
// ReadIndexList, IndexAdded, IndexRemoved, and CommandComplete — plus a
// listener goroutine that translates those into core.Event values, and a
// one-shot device-presence probe used by the IndexRemoved debounce.
//
// The raw-socket plumbing is grounded on the HCI user-channel socket code
// in this module's reference pack (golang.org/x/sys/unix, manual ioctl
// request-number construction); the wire layout here is the kernel MGMT
// header/event format rather than a HCI user channel, since the core needs
// to observe controller lifecycle, not exchange HCI commands.
package mgmt

import (
	"encoding/binary"
	"fmt"
)

// Opcodes and event codes from the kernel's MGMT API (bluetooth/mgmt.h).
// Only the subset spec §4.3/§6 requires is declared.
const (
	opReadIndexList uint16 = 0x0003

	evCmdComplete   uint16 = 0x0001
	evIndexAdded    uint16 = 0x0004
	evIndexRemoved  uint16 = 0x0005
)

// controlIndex is HCI_DEV_NONE (0xFFFF), the pseudo-index MGMT commands
// addressed at no specific controller must use (spec §6).
const controlIndex uint16 = 0xFFFF

// header is the fixed 6-byte MGMT packet header: opcode/event code,
// controller index, and payload length, all little-endian.
type header struct {
	Code  uint16
	Index uint16
	Len   uint16
}

const headerSize = 6

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint16(buf[0:2], h.Code)
	binary.LittleEndian.PutUint16(buf[2:4], h.Index)
	binary.LittleEndian.PutUint16(buf[4:6], h.Len)
	return buf
}

func decodeHeader(b []byte) (header, error) {
	if len(b) < headerSize {
		return header{}, fmt.Errorf("%w: short header (%d bytes)", ErrMalformedPacket, len(b))
	}
	return header{
		Code:  binary.LittleEndian.Uint16(b[0:2]),
		Index: binary.LittleEndian.Uint16(b[2:4]),
		Len:   binary.LittleEndian.Uint16(b[4:6]),
	}, nil
}

// encodeReadIndexList builds a ReadIndexList command packet addressed at
// the control index with an empty body.
func encodeReadIndexList() []byte {
	return encodeHeader(header{Code: opReadIndexList, Index: controlIndex, Len: 0})
}

// event is a decoded MGMT packet: either IndexAdded/IndexRemoved (HCI is
// the header's Index field, no payload needed) or CommandComplete carrying
// a ReadIndexList response (Indexes holds every present controller).
type event struct {
	kind    uint16
	hci     int
	indexes []int
}

// decodeEvent parses one MGMT packet (header + body) into an event.
// Event kinds this manager does not use are returned with kind set but no
// further decoding attempted; the listener ignores anything it doesn't
// recognize.
func decodeEvent(b []byte) (event, error) {
	h, err := decodeHeader(b)
	if err != nil {
		return event{}, err
	}
	body := b[headerSize:]
	if len(body) < int(h.Len) {
		return event{}, fmt.Errorf("%w: body shorter than header length", ErrMalformedPacket)
	}
	body = body[:h.Len]

	ev := event{kind: h.Code, hci: int(h.Index)}

	switch h.Code {
	case evIndexAdded, evIndexRemoved:
		// No payload needed; hci comes from the header's Index field.
	case evCmdComplete:
		if len(body) < 3 {
			return event{}, fmt.Errorf("%w: command complete too short", ErrMalformedPacket)
		}
		opcode := binary.LittleEndian.Uint16(body[0:2])
		status := body[2]
		if opcode != opReadIndexList || status != 0 {
			break
		}
		rest := body[3:]
		if len(rest) < 2 {
			return event{}, fmt.Errorf("%w: read_index_list response too short", ErrMalformedPacket)
		}
		n := binary.LittleEndian.Uint16(rest[0:2])
		rest = rest[2:]
		if len(rest) < int(n)*2 {
			return event{}, fmt.Errorf("%w: read_index_list index list truncated", ErrMalformedPacket)
		}
		indexes := make([]int, 0, n)
		for i := 0; i < int(n); i++ {
			indexes = append(indexes, int(binary.LittleEndian.Uint16(rest[i*2:i*2+2])))
		}
		ev.indexes = indexes
	}

	return ev, nil
}
