package binlog

// Bitset is a read-only view of a byte-addressed bitmap. Bit 0 is the
// lowest bit of the first byte.
type Bitset []byte

func (b Bitset) Get(n int) bool {
	return b[n/8]&(1<<(uint(n)%8)) != 0
}
