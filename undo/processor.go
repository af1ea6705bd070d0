package undo

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/go-mysql-org/go-mysql/replication"

	"github.com/xuenqlve/binlog-undo/binlog"
	"github.com/xuenqlve/binlog-undo/errors"
	"github.com/xuenqlve/binlog-undo/log"
	"github.com/xuenqlve/binlog-undo/transform"
)

// enumEndEvent is one past the highest event code the rewriter
// understands; codes at or above it are treated as corruption.
const enumEndEvent = replication.XA_PREPARE_LOG_EVENT + 1

// A BEGIN query event is ~79 bytes; anything bigger cannot be one.
const maxBeginEventSize = 100

// errEndTransaction is the scan inner loop's signal that the closing XID
// was recorded. It never escapes Scan.
var errEndTransaction = errors.New("end of transaction")

// BinlogUndo reads a binlog from in and writes a binlog to out whose
// transactions, replayed in order, undo the row mutations of the input.
// One pre-allocated event buffer holds the current event across both
// passes; a second buffer of the same size backs the in-place region
// swaps of update inversion. Instances are not safe for concurrent use.
type BinlogUndo struct {
	in  io.ReadSeeker
	out io.Writer

	maxEventSize uint64
	fde          *binlog.FormatDescription
	fdeEvent     Event
	hasChecksum  bool

	rewriteServerID bool
	serverID        uint32
	quiet           bool

	eventBuffer []byte
	swapBuffer  []byte

	header          binlog.EventHeader
	currentEventPos int64
	currentEventLen uint32

	transactions []Trans
}

// New sizes the event and swap buffers to maxEventSizeMB mebibytes each.
// The processor seeks in, writes out strictly append-style, and closes
// neither.
func New(in io.ReadSeeker, out io.Writer, maxEventSizeMB int) *BinlogUndo {
	size := uint64(maxEventSizeMB) * transform.MB
	return &BinlogUndo{
		in:           in,
		out:          out,
		maxEventSize: size,
		eventBuffer:  make([]byte, size),
		swapBuffer:   make([]byte, size),
	}
}

// SetServerID makes every emitted event carry id as its origin server.
// The sentinel math.MaxUint32 leaves the original ids untouched.
func (u *BinlogUndo) SetServerID(id uint32) {
	u.rewriteServerID = id != math.MaxUint32
	u.serverID = id
}

// SetQuiet suppresses the per-event scan trace.
func (u *BinlogUndo) SetQuiet(quiet bool) {
	u.quiet = quiet
}

// Transactions exposes the index built by Scan.
func (u *BinlogUndo) Transactions() []Trans {
	return u.transactions
}

// Scan builds the transaction index. It reads the format description
// first, then runs the transaction state machine from byte offset pos.
func (u *BinlogUndo) Scan(pos int64) error {
	if err := u.readFDE(); err != nil {
		return err
	}
	u.currentEventPos = pos
	if _, err := u.in.Seek(pos, io.SeekStart); err != nil {
		return errors.Annotatef(errors.ErrIO, "seek to %d: %v", pos, err)
	}
	transactionCount := 0
	for {
		err := u.scanBegin()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		for {
			err = u.scanRowOrXid()
			if err == errEndTransaction {
				break
			}
			if err != nil {
				return err
			}
		}
		transactionCount++
	}
	if transactionCount == 0 {
		return errors.Trace(errors.ErrNoTransactions)
	}
	if !u.quiet {
		log.Infof("transactions to undo: %d", transactionCount)
	}
	return nil
}

// Output writes the undo log: the magic, the format description, then
// every scanned transaction in reverse order with its table-map batches
// reversed and its row events inverted. log_pos fields keep their input
// values; downstream tooling uses them as stable event identifiers.
func (u *BinlogUndo) Output() error {
	if _, err := u.out.Write(binlog.Magic); err != nil {
		return errors.Annotatef(errors.ErrIO, "writing magic: %v", err)
	}
	if err := u.copyEventData(u.fdeEvent); err != nil {
		return err
	}
	tableMapBuf := make([]byte, binlog.MaxTableMapSize)
	for i := len(u.transactions) - 1; i >= 0; i-- {
		trans := u.transactions[i]
		if err := u.copyEventData(trans.Begin); err != nil {
			return err
		}
		for j := len(trans.Rows) - 1; j >= 0; j-- {
			rowsEntry := trans.Rows[j]
			if err := u.readEventAt(rowsEntry.Pos); err != nil {
				return err
			}
			// Keep a decoded copy out of the event buffer: the buffer is
			// about to cycle through this table map's row events.
			copy(tableMapBuf, u.eventBuffer[:rowsEntry.Size])
			tableMap, err := binlog.DecodeTableMap(tableMapBuf, u.currentEventLen,
				u.fde.PostHeaderLength(replication.TABLE_MAP_EVENT))
			if err != nil {
				return err
			}
			if err = u.writeEventData(rowsEntry); err != nil {
				return err
			}
			rowPos := int64(u.header.LogPos)
			for rowPos < trans.XID.Pos {
				if err = u.readEventHeaderAt(rowPos); err != nil {
					return err
				}
				if u.header.EventType == replication.ROWS_QUERY_EVENT {
					rowPos = int64(u.header.LogPos)
					continue
				}
				if u.header.EventType == replication.TABLE_MAP_EVENT {
					break
				}
				if err = u.readEventBody(); err != nil {
					return err
				}
				if err = u.revertRowData(tableMap); err != nil {
					return err
				}
				if err = u.writeEventData(Event{Pos: rowPos, Size: u.header.EventSize}); err != nil {
					return err
				}
				rowPos = int64(u.header.LogPos)
			}
		}
		if err := u.copyEventData(trans.XID); err != nil {
			return err
		}
	}
	return nil
}

// readEventHeader reads the next 19 bytes into the event buffer and
// validates the header: a known type code and an intact position chain.
func (u *BinlogUndo) readEventHeader() error {
	n, err := io.ReadFull(u.in, u.eventBuffer[:binlog.HeaderSize])
	if err != nil {
		if n == 0 && err == io.EOF {
			return io.EOF
		}
		return errors.Annotatef(errors.ErrIO, "reading event header at %d: %v", u.currentEventPos, err)
	}
	if err = u.header.Decode(u.eventBuffer[:binlog.HeaderSize]); err != nil {
		return errors.Trace(err)
	}
	if !u.quiet {
		log.Infof("@%d %v(%d) size: %d; next pos: %d",
			u.currentEventPos, u.header.EventType, int(u.header.EventType),
			u.header.EventSize, u.header.LogPos)
	}
	if u.header.EventType == replication.UNKNOWN_EVENT ||
		u.header.EventType >= enumEndEvent ||
		u.header.EventSize < binlog.HeaderSize ||
		int64(u.header.LogPos)-int64(u.header.EventSize) != u.currentEventPos {
		return errors.Annotatef(errors.ErrCorruptEvent, "at %d: type %d size %d next pos %d",
			u.currentEventPos, u.header.EventType, u.header.EventSize, u.header.LogPos)
	}
	u.currentEventLen = u.header.EventSize
	if u.hasChecksum {
		u.currentEventLen -= binlog.ChecksumSize
	}
	return nil
}

func (u *BinlogUndo) readEventBody() error {
	if uint64(u.header.EventSize) > u.maxEventSize {
		return errors.Annotatef(errors.ErrEventTooBig, "event at %d is %d bytes", u.currentEventPos, u.header.EventSize)
	}
	rest := int(u.header.EventSize) - binlog.HeaderSize
	if _, err := io.ReadFull(u.in, u.eventBuffer[binlog.HeaderSize:binlog.HeaderSize+rest]); err != nil {
		return errors.Annotatef(errors.ErrIO, "reading event body at %d: %v", u.currentEventPos, err)
	}
	u.currentEventPos = int64(u.header.LogPos)
	return nil
}

func (u *BinlogUndo) readEventHeaderAt(pos int64) error {
	u.currentEventPos = pos
	if _, err := u.in.Seek(pos, io.SeekStart); err != nil {
		return errors.Annotatef(errors.ErrIO, "seek to %d: %v", pos, err)
	}
	return u.readEventHeader()
}

func (u *BinlogUndo) readEventAt(pos int64) error {
	if err := u.readEventHeaderAt(pos); err != nil {
		return err
	}
	return u.readEventBody()
}

// readFDE reads the format-description event at offset 4 and derives the
// post-header length table and checksum presence for everything after.
func (u *BinlogUndo) readFDE() error {
	if err := u.readEventHeaderAt(binlog.FileHeaderSize); err != nil {
		return err
	}
	if u.header.EventType != replication.FORMAT_DESCRIPTION_EVENT {
		return errors.Annotatef(errors.ErrUnexpectedEventType, "want format description at %d, got %v",
			binlog.FileHeaderSize, u.header.EventType)
	}
	if err := u.readEventBody(); err != nil {
		return err
	}
	fde, err := binlog.DecodeFormatDescription(u.eventBuffer, u.header.EventSize)
	if err != nil {
		return err
	}
	u.fde = fde
	u.fdeEvent = Event{Pos: binlog.FileHeaderSize, Size: u.header.EventSize}
	u.hasChecksum = fde.HasChecksum()
	return nil
}

// scanBegin positions the scan on the next transaction: a QUERY event
// whose payload is the literal bytes BEGIN. A GTID or anonymous-GTID
// event in front of it is skipped; ROTATE and STOP end the scan.
func (u *BinlogUndo) scanBegin() error {
	if err := u.readEventHeader(); err != nil {
		return err
	}
	if u.header.EventType == replication.GTID_EVENT ||
		u.header.EventType == replication.ANONYMOUS_GTID_EVENT {
		if err := u.readEventBody(); err != nil {
			return err
		}
		if !u.quiet {
			if gtid, err := binlog.DecodeGTID(u.eventBuffer[binlog.HeaderSize:u.currentEventLen]); err == nil {
				log.Debugf("skipping gtid %v", gtid)
			}
		}
		if err := u.readEventHeader(); err != nil {
			return err
		}
	}
	if u.header.EventType == replication.ROTATE_EVENT ||
		u.header.EventType == replication.STOP_EVENT {
		return io.EOF
	}
	if u.header.EventType != replication.QUERY_EVENT || u.header.EventSize > maxBeginEventSize {
		return errors.Annotatef(errors.ErrUnexpectedEventType, "want BEGIN query at %d, got %v (%d bytes)",
			u.currentEventPos, u.header.EventType, u.header.EventSize)
	}
	if err := u.readEventBody(); err != nil {
		return err
	}
	if !isBeginQuery(u.eventBuffer[:u.currentEventLen], int(u.fde.PostHeaderLength(replication.QUERY_EVENT))) {
		return errors.Annotatef(errors.ErrUnexpectedEventType, "query event at %d is not BEGIN",
			int64(u.header.LogPos)-int64(u.header.EventSize))
	}
	u.transactions = append(u.transactions, Trans{
		Begin: Event{
			Pos:  int64(u.header.LogPos) - int64(u.header.EventSize),
			Size: u.header.EventSize,
		},
	})
	return nil
}

// scanRowOrXid consumes one in-transaction event: table maps are
// recorded, row and rows-query events are skipped by length, the XID
// closes the transaction.
func (u *BinlogUndo) scanRowOrXid() error {
	if err := u.readEventHeader(); err != nil {
		return err
	}
	var result error
	switch u.header.EventType {
	case replication.TABLE_MAP_EVENT:
		if u.header.EventSize > binlog.MaxTableMapSize {
			return errors.Annotatef(errors.ErrEventTooBig, "table map at %d is %d bytes",
				u.currentEventPos, u.header.EventSize)
		}
		trans := &u.transactions[len(u.transactions)-1]
		trans.Rows = append(trans.Rows, Event{Pos: u.currentEventPos, Size: u.header.EventSize})
	case replication.WRITE_ROWS_EVENTv2, replication.UPDATE_ROWS_EVENTv2,
		replication.DELETE_ROWS_EVENTv2, replication.ROWS_QUERY_EVENT:
		// bounded by the next table map or the xid
	case replication.XID_EVENT:
		trans := &u.transactions[len(u.transactions)-1]
		trans.XID = Event{Pos: u.currentEventPos, Size: u.header.EventSize}
		result = errEndTransaction
	default:
		return errors.Annotatef(errors.ErrUnexpectedEventType, "%v at %d inside transaction",
			u.header.EventType, u.currentEventPos)
	}
	u.currentEventPos = int64(u.header.LogPos)
	if _, err := u.in.Seek(u.currentEventPos, io.SeekStart); err != nil {
		return errors.Annotatef(errors.ErrIO, "seek to %d: %v", u.currentEventPos, err)
	}
	return result
}

// isBeginQuery checks that a query event's payload is the five literal
// bytes BEGIN. Query post-header: thread id (4), execution time (4),
// schema length (1), error code (2), status-vars length (2).
func isBeginQuery(event []byte, postHeaderLen int) bool {
	if postHeaderLen < 13 || len(event) < binlog.HeaderSize+postHeaderLen {
		return false
	}
	schemaLen := int(event[binlog.HeaderSize+8])
	statusVarsLen := int(binary.LittleEndian.Uint16(event[binlog.HeaderSize+11 : binlog.HeaderSize+13]))
	queryPos := binlog.HeaderSize + postHeaderLen + statusVarsLen + schemaLen + 1
	if queryPos > len(event) {
		return false
	}
	return string(event[queryPos:]) == "BEGIN"
}

// revertRowData inverts the row event in the event buffer against its
// table map: write and delete swap type codes, update swaps its before
// and after images in place.
func (u *BinlogUndo) revertRowData(tableMap *binlog.TableMap) error {
	body := binlog.RowsBodySlice(u.eventBuffer, u.currentEventLen,
		u.fde.PostHeaderLength(u.header.EventType))
	columnCount, bitmap, rowData, err := binlog.SplitRowsData(u.header.EventType, body)
	if err != nil {
		return err
	}
	switch u.header.EventType {
	case replication.WRITE_ROWS_EVENTv2:
		u.eventBuffer[binlog.TypeOffset] = byte(replication.DELETE_ROWS_EVENTv2)
	case replication.DELETE_ROWS_EVENTv2:
		u.eventBuffer[binlog.TypeOffset] = byte(replication.WRITE_ROWS_EVENTv2)
	case replication.UPDATE_ROWS_EVENTv2:
		if err = u.swapUpdateRow(bitmap, rowData, columnCount, tableMap); err != nil {
			return err
		}
	default:
		return errors.Annotatef(errors.ErrUnexpectedEventType, "%v cannot be inverted", u.header.EventType)
	}
	return nil
}

// swapUpdateRow exchanges the before and after images of an update row
// event. The before-image length is found by walking the packed fields
// behind the null bitmap with the field-size oracle.
func (u *BinlogUndo) swapUpdateRow(bitmap, rowData []byte, columnCount uint64, tableMap *binlog.TableMap) error {
	if tableMap.ColumnCount != columnCount {
		return errors.Annotatef(errors.ErrCorruptEvent, "update names %d columns, table map %d",
			columnCount, tableMap.ColumnCount)
	}
	presentSet := binlog.Bitset(bitmap)
	presentBitmapLen := (int(columnCount) + 7) / 8
	nullSet := binlog.Bitset(rowData)
	nullBitNum := 0
	for i := 0; i < int(columnCount); i++ {
		if presentSet.Get(i) {
			nullBitNum++
		}
	}
	metadata := tableMap.ExpandMetadata()
	pos := (nullBitNum + 7) / 8
	if pos > len(rowData) {
		return errors.Annotatef(errors.ErrCorruptEvent, "null bitmap overruns %d-byte row data", len(rowData))
	}
	nullIndex := -1
	for i := 0; i < int(columnCount); i++ {
		if !presentSet.Get(i) {
			continue
		}
		nullIndex++
		if nullSet.Get(nullIndex) {
			continue
		}
		if pos > len(rowData) {
			return errors.Annotatef(errors.ErrCorruptEvent, "before image overruns %d-byte row data", len(rowData))
		}
		fieldSize, err := binlog.FieldSize(tableMap.ColumnType[i], rowData[pos:], metadata[i])
		if err != nil {
			return err
		}
		pos += int(fieldSize)
	}
	lenOld := pos
	lenNew := len(rowData) - lenOld
	if lenNew < 0 {
		return errors.Annotatef(errors.ErrCorruptEvent, "before image of %d bytes in %d-byte row data",
			lenOld, len(rowData))
	}
	u.swapAdjacent(bitmap, presentBitmapLen, presentBitmapLen)
	u.swapAdjacent(rowData, lenOld, lenNew)
	return nil
}

// swapAdjacent moves the leading first bytes of buf behind the following
// second bytes, through the swap buffer.
func (u *BinlogUndo) swapAdjacent(buf []byte, first, second int) {
	copy(u.swapBuffer[:first], buf[:first])
	copy(buf[:second], buf[first:first+second])
	copy(buf[second:second+first], u.swapBuffer[:first])
}

// writeEventData runs the integrity rewriter over the event buffer and
// appends the event to the output.
func (u *BinlogUndo) writeEventData(e Event) error {
	u.rewriteServerIDField()
	u.rewriteChecksum()
	if _, err := u.out.Write(u.eventBuffer[:e.Size]); err != nil {
		return errors.Annotatef(errors.ErrIO, "writing event from %d: %v", e.Pos, err)
	}
	return nil
}

func (u *BinlogUndo) copyEventData(e Event) error {
	if err := u.readEventAt(e.Pos); err != nil {
		return err
	}
	return u.writeEventData(e)
}

func (u *BinlogUndo) rewriteChecksum() {
	if !u.hasChecksum {
		return
	}
	tail := u.header.EventSize - binlog.ChecksumSize
	sum := binlog.Checksum(u.eventBuffer[:tail])
	binary.LittleEndian.PutUint32(u.eventBuffer[tail:tail+binlog.ChecksumSize], sum)
}

func (u *BinlogUndo) rewriteServerIDField() {
	if !u.rewriteServerID {
		return
	}
	binary.LittleEndian.PutUint32(u.eventBuffer[binlog.ServerIDOffset:binlog.ServerIDOffset+4], u.serverID)
}
