package binlog

import "testing"

func TestChecksum(t *testing.T) {
	// the CRC32 check value for the ISO 3309 polynomial
	if got := Checksum([]byte("123456789")); got != 0xcbf43926 {
		t.Fatalf("checksum %#x, want 0xcbf43926", got)
	}
}
