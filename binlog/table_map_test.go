package binlog

import (
	"testing"

	"github.com/go-mysql-org/go-mysql/mysql"
)

func TestExpandMetadata(t *testing.T) {
	tm := &TableMap{
		ColumnCount: 9,
		ColumnType: []byte{
			mysql.MYSQL_TYPE_LONG,       // no metadata
			mysql.MYSQL_TYPE_VARCHAR,    // 2 bytes, little-endian
			mysql.MYSQL_TYPE_NEWDECIMAL, // 2 bytes, precision high
			mysql.MYSQL_TYPE_BIT,        // 2 bytes, first byte low
			mysql.MYSQL_TYPE_STRING,     // 2 bytes, real type high
			mysql.MYSQL_TYPE_ENUM,       // 2 bytes, real type high
			mysql.MYSQL_TYPE_BLOB,       // 1 byte
			mysql.MYSQL_TYPE_DOUBLE,     // 1 byte
			mysql.MYSQL_TYPE_TIMESTAMP2, // 1 byte
		},
		FieldMetadata: []byte{
			0x2c, 0x01, // varchar: 300
			10, 2, // decimal(10,2)
			3, 2, // bit(19): 3 spare bits, 2 full bytes
			mysql.MYSQL_TYPE_STRING, 20, // char(20)
			mysql.MYSQL_TYPE_ENUM, 1, // enum, 1-byte index
			2,    // blob: 2 length bytes
			8,    // double pack length
			3,    // timestamp(3)
		},
	}
	want := []uint16{
		0,
		300,
		uint16(10)<<8 | 2,
		3 | uint16(2)<<8,
		uint16(mysql.MYSQL_TYPE_STRING)<<8 | 20,
		uint16(mysql.MYSQL_TYPE_ENUM)<<8 | 1,
		2,
		8,
		3,
	}
	got := tm.ExpandMetadata()
	if len(got) != len(want) {
		t.Fatalf("expanded %d values, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d: metadata %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestExpandMetadataEmpty(t *testing.T) {
	tm := &TableMap{
		ColumnCount: 3,
		ColumnType:  []byte{mysql.MYSQL_TYPE_LONG, mysql.MYSQL_TYPE_LONG, mysql.MYSQL_TYPE_LONG},
	}
	for i, v := range tm.ExpandMetadata() {
		if v != 0 {
			t.Errorf("column %d: metadata %d, want 0", i, v)
		}
	}

	tm.ColumnCount = 0
	if got := tm.ExpandMetadata(); len(got) != 0 {
		t.Errorf("zero columns expanded to %d values", len(got))
	}
}

func TestDecodeTableMap(t *testing.T) {
	event := make([]byte, HeaderSize)
	event = append(event, 0x2d, 0, 0, 0, 0, 0) // table id
	event = append(event, 1, 0)                // flags
	event = append(event, 4)
	event = append(event, "test"...)
	event = append(event, 0)
	event = append(event, 2)
	event = append(event, "t1"...)
	event = append(event, 0)
	event = append(event, 2) // column count
	event = append(event, mysql.MYSQL_TYPE_LONG, mysql.MYSQL_TYPE_VARCHAR)
	event = append(event, 2)     // metadata length
	event = append(event, 10, 0) // varchar(10)
	event = append(event, 0)     // null-defaults bitmap

	tm, err := DecodeTableMap(event, uint32(len(event)), 8)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tm.TableID != 0x2d {
		t.Errorf("table id %d, want 45", tm.TableID)
	}
	if tm.Schema != "test" || tm.Table != "t1" {
		t.Errorf("got %s.%s, want test.t1", tm.Schema, tm.Table)
	}
	if tm.ColumnCount != 2 {
		t.Fatalf("column count %d, want 2", tm.ColumnCount)
	}
	if tm.ColumnType[1] != mysql.MYSQL_TYPE_VARCHAR {
		t.Errorf("column 1 type %d, want varchar", tm.ColumnType[1])
	}
	meta := tm.ExpandMetadata()
	if meta[0] != 0 || meta[1] != 10 {
		t.Errorf("metadata %v, want [0 10]", meta)
	}
}

func TestDecodeTableMapTruncated(t *testing.T) {
	event := make([]byte, HeaderSize+4)
	if _, err := DecodeTableMap(event, uint32(len(event)), 8); err == nil {
		t.Fatal("decoding a truncated table map succeeded")
	}
}
