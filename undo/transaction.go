package undo

// Event locates one event in the input: byte offset and written length,
// header and checksum tail included.
type Event struct {
	Pos  int64
	Size uint32
}

// Trans records one BEGIN..XID transaction found by the scan. Rows holds
// the table-map events; the row events following each table map are
// bounded by the next Rows entry or by the xid.
type Trans struct {
	Begin Event
	Rows  []Event
	XID   Event
}
