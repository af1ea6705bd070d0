package binlog

import (
	"encoding/binary"

	"github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"

	"github.com/xuenqlve/binlog-undo/errors"
)

// RowsBodySlice isolates the rows body of the event in buf: everything
// from the column-count packed integer to the end of the event body.
// The v2 rows post-header ends with its own two-byte length, so the
// variable header advance overshoots by two and is stepped back.
// eventLen is the event length without the checksum tail.
func RowsBodySlice(buf []byte, eventLen uint32, postHeaderLen byte) []byte {
	ptr := HeaderSize + int(postHeaderLen)
	if postHeaderLen == RowsHeaderLenV2 {
		varHeaderLen := int(binary.LittleEndian.Uint16(buf[ptr-2 : ptr]))
		ptr += varHeaderLen
	}
	ptr -= 2
	return buf[ptr:eventLen]
}

// SplitRowsData reads the column count off a rows body and splits the
// rest into the presence bitmap(s) and the packed row data. Update
// events carry two bitmaps, before image then after image. Every bitmap
// byte must be 0xff: undoing requires the full row image on both sides.
func SplitRowsData(eventType replication.EventType, body []byte) (columnCount uint64, bitmap, rowData []byte, err error) {
	count, _, n := LengthEncodedInt(body)
	if n == 0 {
		return 0, nil, nil, errors.Annotatef(errors.ErrCorruptEvent, "rows body of %d bytes has no column count", len(body))
	}
	rest := body[n:]

	bitmapLen := (int(count) + 7) / 8
	if eventType == replication.UPDATE_ROWS_EVENTv2 {
		bitmapLen *= 2
	}
	if bitmapLen > len(rest) {
		return 0, nil, nil, errors.Annotatef(errors.ErrCorruptEvent, "%d-column bitmap overruns %d-byte rows body", count, len(body))
	}
	for i := 0; i < bitmapLen; i++ {
		if rest[i] != 0xff {
			return 0, nil, nil, errors.Trace(errors.ErrNotFullRowImage)
		}
	}
	return count, rest[:bitmapLen], rest[bitmapLen:], nil
}

// dig2bytes[d] is the byte count packing d leading decimal digits,
// d < 9; full groups of nine digits pack into four bytes each.
var dig2bytes = [10]uint32{0, 1, 1, 2, 2, 3, 3, 4, 4, 4}

func decimalBinarySize(precision, decimals uint32) uint32 {
	intg := precision - decimals
	intg0, frac0 := intg/9, decimals/9
	intg0x, frac0x := intg-intg0*9, decimals-frac0*9
	return intg0*4 + dig2bytes[intg0x] + frac0*4 + dig2bytes[frac0x]
}

// FieldSize returns the number of bytes encoding one non-null field of
// the given column type at the start of data. meta is the column's
// expanded table-map metadata. The answer must agree with the server's
// own packing; a type the server cannot put in a row event is treated
// as corruption.
func FieldSize(columnType byte, data []byte, meta uint16) (uint32, error) {
	switch columnType {
	case mysql.MYSQL_TYPE_TINY, mysql.MYSQL_TYPE_YEAR:
		return 1, nil
	case mysql.MYSQL_TYPE_SHORT:
		return 2, nil
	case mysql.MYSQL_TYPE_INT24:
		return 3, nil
	case mysql.MYSQL_TYPE_LONG:
		return 4, nil
	case mysql.MYSQL_TYPE_LONGLONG:
		return 8, nil
	case mysql.MYSQL_TYPE_NULL:
		return 0, nil

	// pack length is carried verbatim in the metadata byte
	case mysql.MYSQL_TYPE_DECIMAL, mysql.MYSQL_TYPE_FLOAT, mysql.MYSQL_TYPE_DOUBLE:
		return uint32(meta), nil

	case mysql.MYSQL_TYPE_DATE, mysql.MYSQL_TYPE_NEWDATE, mysql.MYSQL_TYPE_TIME:
		return 3, nil
	case mysql.MYSQL_TYPE_TIMESTAMP:
		return 4, nil
	case mysql.MYSQL_TYPE_DATETIME:
		return 8, nil

	// fractional-second variants add ceil(decimals/2) trailing bytes
	case mysql.MYSQL_TYPE_TIME2:
		return 3 + uint32(meta+1)/2, nil
	case mysql.MYSQL_TYPE_TIMESTAMP2:
		return 4 + uint32(meta+1)/2, nil
	case mysql.MYSQL_TYPE_DATETIME2:
		return 5 + uint32(meta+1)/2, nil

	case mysql.MYSQL_TYPE_NEWDECIMAL:
		return decimalBinarySize(uint32(meta>>8), uint32(meta&0xff)), nil

	case mysql.MYSQL_TYPE_ENUM, mysql.MYSQL_TYPE_SET:
		return uint32(meta & 0xff), nil

	case mysql.MYSQL_TYPE_BIT:
		fullBytes := uint32(meta>>8) & 0xff
		restBits := uint32(meta) & 0xff
		if restBits > 0 {
			fullBytes++
		}
		return fullBytes, nil

	case mysql.MYSQL_TYPE_VARCHAR, mysql.MYSQL_TYPE_VAR_STRING:
		return stringFieldSize(data, uint32(meta))

	case mysql.MYSQL_TYPE_STRING:
		realType := byte(meta >> 8)
		if realType == mysql.MYSQL_TYPE_SET || realType == mysql.MYSQL_TYPE_ENUM {
			return uint32(meta & 0xff), nil
		}
		// CHAR: field length is split across the metadata bytes
		maxLen := uint32(((meta>>4)&0x300)^0x300) + uint32(meta&0xff)
		return stringFieldSize(data, maxLen)

	case mysql.MYSQL_TYPE_TINY_BLOB, mysql.MYSQL_TYPE_BLOB,
		mysql.MYSQL_TYPE_MEDIUM_BLOB, mysql.MYSQL_TYPE_LONG_BLOB,
		mysql.MYSQL_TYPE_GEOMETRY, mysql.MYSQL_TYPE_JSON:
		// metadata is the width of the length prefix
		lenBytes := int(meta)
		if lenBytes < 1 || lenBytes > 4 || len(data) < lenBytes {
			return 0, errors.Annotatef(errors.ErrCorruptEvent, "blob with %d length bytes", lenBytes)
		}
		return uint32(lenBytes) + uint32(FixedLengthInt(data[:lenBytes])), nil
	}
	return 0, errors.Annotatef(errors.ErrCorruptEvent, "unknown column type %d", columnType)
}

// stringFieldSize sizes a length-prefixed string field: one length byte
// when the declared maximum fits one byte, two otherwise.
func stringFieldSize(data []byte, maxLen uint32) (uint32, error) {
	if maxLen > 255 {
		if len(data) < 2 {
			return 0, errors.Annotatef(errors.ErrCorruptEvent, "string field truncated at length prefix")
		}
		return 2 + uint32(binary.LittleEndian.Uint16(data)), nil
	}
	if len(data) < 1 {
		return 0, errors.Annotatef(errors.ErrCorruptEvent, "string field truncated at length prefix")
	}
	return 1 + uint32(data[0]), nil
}
