package binlog

import (
	"encoding/binary"
	"testing"
)

func TestDecodeGTID(t *testing.T) {
	body := make([]byte, 42)
	body[0] = 1
	for i := 1; i <= 16; i++ {
		body[i] = byte(i)
	}
	binary.LittleEndian.PutUint64(body[17:25], 23)

	gtid, err := DecodeGTID(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if gtid.GNO != 23 {
		t.Errorf("gno %d, want 23", gtid.GNO)
	}
	if got := gtid.String(); got != "01020304-0506-0708-090a-0b0c0d0e0f10:23" {
		t.Errorf("gtid %q", got)
	}

	if _, err = DecodeGTID(body[:10]); err == nil {
		t.Fatal("short body decoded")
	}
}
