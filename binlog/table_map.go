package binlog

import (
	"encoding/binary"

	"github.com/go-mysql-org/go-mysql/mysql"

	"github.com/xuenqlve/binlog-undo/errors"
)

// MaxTableMapSize bounds the table-map events this tool accepts. The
// emission pass keeps a decoded copy of the current table map in a buffer
// of this size while the main event buffer cycles through row events.
const MaxTableMapSize = 16 * 1024

// TableMap is the decoded table-map event that precedes a batch of row
// events and describes how to size their packed fields.
type TableMap struct {
	TableID       uint64
	Flags         uint16
	Schema        string
	Table         string
	ColumnCount   uint64
	ColumnType    []byte
	FieldMetadata []byte
	NullBits      []byte
}

// DecodeTableMap parses a complete table-map event, header included.
// eventLen is the event length without the checksum tail; postHeaderLen
// comes from the format description (6 on ancient logs, 8 since v4).
func DecodeTableMap(data []byte, eventLen uint32, postHeaderLen byte) (*TableMap, error) {
	if int(eventLen) > len(data) {
		return nil, errors.Annotatef(errors.ErrCorruptEvent, "table map of %d bytes in %d-byte buffer", eventLen, len(data))
	}
	data = data[:eventLen]
	pos := HeaderSize
	t := &TableMap{}

	if postHeaderLen == 6 {
		if len(data) < pos+6 {
			return nil, truncatedTableMap(eventLen)
		}
		t.TableID = uint64(binary.LittleEndian.Uint32(data[pos:]))
		pos += 4
	} else {
		if len(data) < pos+8 {
			return nil, truncatedTableMap(eventLen)
		}
		t.TableID = FixedLengthInt(data[pos : pos+6])
		pos += 6
	}
	t.Flags = binary.LittleEndian.Uint16(data[pos:])
	pos += 2

	schemaLen := int(data[pos])
	pos++
	if len(data) < pos+schemaLen+2 {
		return nil, truncatedTableMap(eventLen)
	}
	t.Schema = string(data[pos : pos+schemaLen])
	pos += schemaLen + 1 // trailing NUL

	tableLen := int(data[pos])
	pos++
	if len(data) < pos+tableLen+1 {
		return nil, truncatedTableMap(eventLen)
	}
	t.Table = string(data[pos : pos+tableLen])
	pos += tableLen + 1

	count, _, n := LengthEncodedInt(data[pos:])
	if n == 0 {
		return nil, truncatedTableMap(eventLen)
	}
	t.ColumnCount = count
	pos += n
	if len(data) < pos+int(count) {
		return nil, truncatedTableMap(eventLen)
	}
	t.ColumnType = make([]byte, count)
	copy(t.ColumnType, data[pos:pos+int(count)])
	pos += int(count)

	metaLen, _, n := LengthEncodedInt(data[pos:])
	if n == 0 {
		return nil, truncatedTableMap(eventLen)
	}
	pos += n
	if len(data) < pos+int(metaLen) {
		return nil, truncatedTableMap(eventLen)
	}
	t.FieldMetadata = make([]byte, metaLen)
	copy(t.FieldMetadata, data[pos:pos+int(metaLen)])
	pos += int(metaLen)

	nullLen := (int(count) + 7) / 8
	if len(data) >= pos+nullLen {
		t.NullBits = make([]byte, nullLen)
		copy(t.NullBits, data[pos:pos+nullLen])
	}
	return t, nil
}

func truncatedTableMap(eventLen uint32) error {
	return errors.Annotatef(errors.ErrCorruptEvent, "truncated table map of %d bytes", eventLen)
}

// ExpandMetadata spreads the packed per-column metadata into one 16-bit
// value per column, mirroring the server's save_field_metadata layout.
// Which of a pair of bytes lands in the high half differs by type and
// matters: the field-size oracle reads these values back apart.
func (t *TableMap) ExpandMetadata() []uint16 {
	out := make([]uint16, t.ColumnCount)
	if t.ColumnCount == 0 || len(t.FieldMetadata) == 0 {
		return out
	}
	i := 0
	for c := 0; c < int(t.ColumnCount); c++ {
		switch t.ColumnType[c] {
		case mysql.MYSQL_TYPE_TINY_BLOB, mysql.MYSQL_TYPE_BLOB,
			mysql.MYSQL_TYPE_MEDIUM_BLOB, mysql.MYSQL_TYPE_LONG_BLOB,
			mysql.MYSQL_TYPE_DOUBLE, mysql.MYSQL_TYPE_FLOAT,
			mysql.MYSQL_TYPE_GEOMETRY, mysql.MYSQL_TYPE_JSON:
			// single byte, the pack length
			out[c] = uint16(t.FieldMetadata[i])
			i++
		case mysql.MYSQL_TYPE_SET, mysql.MYSQL_TYPE_ENUM, mysql.MYSQL_TYPE_STRING:
			// real type, then pack or field length
			x := uint16(t.FieldMetadata[i]) << 8
			x += uint16(t.FieldMetadata[i+1])
			out[c] = x
			i += 2
		case mysql.MYSQL_TYPE_BIT:
			x := uint16(t.FieldMetadata[i])
			x += uint16(t.FieldMetadata[i+1]) << 8
			out[c] = x
			i += 2
		case mysql.MYSQL_TYPE_VARCHAR:
			out[c] = binary.LittleEndian.Uint16(t.FieldMetadata[i:])
			i += 2
		case mysql.MYSQL_TYPE_NEWDECIMAL:
			// precision, then decimals
			x := uint16(t.FieldMetadata[i]) << 8
			x += uint16(t.FieldMetadata[i+1])
			out[c] = x
			i += 2
		case mysql.MYSQL_TYPE_TIME2, mysql.MYSQL_TYPE_DATETIME2, mysql.MYSQL_TYPE_TIMESTAMP2:
			out[c] = uint16(t.FieldMetadata[i])
			i++
		default:
			out[c] = 0
		}
	}
	return out
}
