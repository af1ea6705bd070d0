package binlog

import (
	"encoding/binary"
	"testing"

	"github.com/go-mysql-org/go-mysql/replication"
)

func buildFormatDescription(serverVersion string, checksumAlg int) []byte {
	event := make([]byte, HeaderSize)
	event = binary.LittleEndian.AppendUint16(event, 4)
	version := make([]byte, serverVersionLen)
	copy(version, serverVersion)
	event = append(event, version...)
	event = append(event, 0, 0, 0, 0) // create timestamp
	event = append(event, HeaderSize)
	postHeaderLen := make([]byte, 38)
	postHeaderLen[replication.QUERY_EVENT-1] = 13
	postHeaderLen[replication.TABLE_MAP_EVENT-1] = 8
	postHeaderLen[replication.WRITE_ROWS_EVENTv2-1] = 10
	event = append(event, postHeaderLen...)
	if checksumAlg >= 0 {
		event = append(event, byte(checksumAlg))
		event = append(event, 0, 0, 0, 0) // checksum, not verified here
	}
	binary.LittleEndian.PutUint32(event[9:13], uint32(len(event)))
	return event
}

func TestDecodeFormatDescription(t *testing.T) {
	event := buildFormatDescription("5.7.30-log", int(replication.BINLOG_CHECKSUM_ALG_CRC32))
	fde, err := DecodeFormatDescription(event, uint32(len(event)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fde.Version != 4 {
		t.Errorf("binlog version %d, want 4", fde.Version)
	}
	if fde.ServerVersion != "5.7.30-log" {
		t.Errorf("server version %q", fde.ServerVersion)
	}
	if !fde.HasChecksum() {
		t.Error("checksum not detected")
	}
	if got := fde.PostHeaderLength(replication.QUERY_EVENT); got != 13 {
		t.Errorf("query post-header %d, want 13", got)
	}
	if got := fde.PostHeaderLength(replication.WRITE_ROWS_EVENTv2); got != 10 {
		t.Errorf("write-rows post-header %d, want 10", got)
	}
}

func TestDecodeFormatDescriptionNoChecksum(t *testing.T) {
	event := buildFormatDescription("5.5.62-log", -1)
	fde, err := DecodeFormatDescription(event, uint32(len(event)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fde.HasChecksum() {
		t.Error("checksum detected on a 5.5 log")
	}
	if got := fde.PostHeaderLength(replication.TABLE_MAP_EVENT); got != 8 {
		t.Errorf("table-map post-header %d, want 8", got)
	}
}

func TestServerVersionAtLeast(t *testing.T) {
	cases := []struct {
		version string
		want    bool
	}{
		{"5.6.1", true},
		{"5.7.30-log", true},
		{"8.0.32", true},
		{"5.6.0", false},
		{"5.5.62-log", false},
		{"10.4.13-MariaDB", true},
	}
	for _, c := range cases {
		if got := serverVersionAtLeast(c.version, 5, 6, 1); got != c.want {
			t.Errorf("%s: got %v, want %v", c.version, got, c.want)
		}
	}
}
