package binlog

import (
	"encoding/binary"
	"fmt"

	uuid "github.com/satori/go.uuid"

	"github.com/xuenqlve/binlog-undo/errors"
)

// gtid body prefix: commit flag (1), source id (16), sequence number (8)
const gtidPrefixLen = 25

// GTID identifies the transaction a GTID or anonymous-GTID event opens.
type GTID struct {
	SID uuid.UUID
	GNO int64
}

// DecodeGTID parses the leading flags+sid+gno of a GTID event body. The
// logical-timestamp block that follows is ignored.
func DecodeGTID(body []byte) (GTID, error) {
	var g GTID
	if len(body) < gtidPrefixLen {
		return g, errors.Annotatef(errors.ErrCorruptEvent, "gtid body of %d bytes", len(body))
	}
	sid, err := uuid.FromBytes(body[1:17])
	if err != nil {
		return g, errors.Trace(err)
	}
	g.SID = sid
	g.GNO = int64(binary.LittleEndian.Uint64(body[17:25]))
	return g, nil
}

func (g GTID) String() string {
	return fmt.Sprintf("%s:%d", g.SID, g.GNO)
}
