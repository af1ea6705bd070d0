package binlog

import "testing"

func TestBitsetGet(t *testing.T) {
	b := Bitset{0b0000_0101, 0b1000_0000}
	set := map[int]bool{0: true, 2: true, 15: true}
	for i := 0; i < 16; i++ {
		if got := b.Get(i); got != set[i] {
			t.Errorf("bit %d: got %v, want %v", i, got, set[i])
		}
	}
}
