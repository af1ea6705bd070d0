package binlog

import (
	"encoding/binary"

	"github.com/go-mysql-org/go-mysql/replication"

	"github.com/xuenqlve/binlog-undo/errors"
)

const (
	// FileHeaderSize is the offset of the first event: the file magic is
	// four bytes, the fifth byte of the five-byte signature is already the
	// first byte of the format-description event's timestamp.
	FileHeaderSize = 4

	HeaderSize   = replication.EventHeaderSize
	ChecksumSize = 4

	// Byte offsets into the fixed event header.
	TypeOffset     = 4
	ServerIDOffset = 5

	// RowsHeaderLenV2 marks the v2 rows post-header, which carries a
	// variable-length extra header after the fixed part.
	RowsHeaderLenV2 = 10
)

// Magic is what every binlog file starts with.
var Magic = []byte{0xfe, 0x62, 0x69, 0x6e}

// EventHeader is the fixed 19-byte header in front of every event.
// EventSize counts the whole event: header, body and checksum tail.
// LogPos is the absolute offset of the next event.
type EventHeader struct {
	Timestamp uint32
	EventType replication.EventType
	ServerID  uint32
	EventSize uint32
	LogPos    uint32
	Flags     uint16
}

func (h *EventHeader) Decode(data []byte) error {
	if len(data) < HeaderSize {
		return errors.Errorf("event header needs %d bytes, got %d", HeaderSize, len(data))
	}
	h.Timestamp = binary.LittleEndian.Uint32(data[0:4])
	h.EventType = replication.EventType(data[TypeOffset])
	h.ServerID = binary.LittleEndian.Uint32(data[ServerIDOffset : ServerIDOffset+4])
	h.EventSize = binary.LittleEndian.Uint32(data[9:13])
	h.LogPos = binary.LittleEndian.Uint32(data[13:17])
	h.Flags = binary.LittleEndian.Uint16(data[17:19])
	return nil
}
