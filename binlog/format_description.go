package binlog

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/go-mysql-org/go-mysql/replication"

	"github.com/xuenqlve/binlog-undo/errors"
)

// fixed part of the format-description body: binlog version (2),
// server version (50), create timestamp (4), common header length (1)
const formatDescriptionFixedLen = 57

const serverVersionLen = 50

// FormatDescription is the self-describing preamble event at offset 4.
// PostHeaderLen is indexed by event type code minus one.
type FormatDescription struct {
	Version           uint16
	ServerVersion     string
	CreateTimestamp   uint32
	EventHeaderLength uint8
	PostHeaderLen     []byte
	ChecksumAlg       byte
}

// DecodeFormatDescription parses a complete format-description event,
// header included. size is the event's written length.
func DecodeFormatDescription(data []byte, size uint32) (*FormatDescription, error) {
	if int(size) > len(data) || size < HeaderSize+formatDescriptionFixedLen {
		return nil, errors.Annotatef(errors.ErrCorruptEvent, "format description of %d bytes", size)
	}
	body := data[HeaderSize:size]
	fde := &FormatDescription{
		Version:           binary.LittleEndian.Uint16(body[0:2]),
		ServerVersion:     string(bytes.TrimRight(body[2:2+serverVersionLen], "\x00")),
		CreateTimestamp:   binary.LittleEndian.Uint32(body[52:56]),
		EventHeaderLength: body[56],
		ChecksumAlg:       replication.BINLOG_CHECKSUM_ALG_UNDEF,
	}
	rest := body[formatDescriptionFixedLen:]
	// Servers since 5.6.1 append a checksum-algorithm tag; the tag byte
	// sits just before the event's own checksum tail.
	if serverVersionAtLeast(fde.ServerVersion, 5, 6, 1) {
		fde.ChecksumAlg = body[len(body)-ChecksumSize-1]
		if fde.ChecksumAlg == replication.BINLOG_CHECKSUM_ALG_CRC32 {
			rest = rest[:len(rest)-(ChecksumSize+1)]
		}
	}
	fde.PostHeaderLen = make([]byte, len(rest))
	copy(fde.PostHeaderLen, rest)
	return fde, nil
}

func (f *FormatDescription) HasChecksum() bool {
	return f.ChecksumAlg == replication.BINLOG_CHECKSUM_ALG_CRC32
}

// PostHeaderLength returns the fixed post-header size the log declares
// for an event type, or zero for types the log does not describe.
func (f *FormatDescription) PostHeaderLength(t replication.EventType) byte {
	i := int(t) - 1
	if i < 0 || i >= len(f.PostHeaderLen) {
		return 0
	}
	return f.PostHeaderLen[i]
}

// serverVersionAtLeast compares the leading numeric x.y.z of a server
// version string ("5.7.30-log") against major.minor.patch.
func serverVersionAtLeast(version string, major, minor, patch int) bool {
	if i := strings.IndexAny(version, "-_ "); i >= 0 {
		version = version[:i]
	}
	parts := strings.SplitN(version, ".", 3)
	nums := [3]int{}
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			break
		}
		nums[i] = n
	}
	got := nums[0]*10000 + nums[1]*100 + nums[2]
	want := major*10000 + minor*100 + patch
	return got >= want
}
