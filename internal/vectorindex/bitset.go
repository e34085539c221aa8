package vectorindex

// bitset is a fixed-size bit vector used as the visited set during beam
// search. One allocation per search instead of a map per hop.
type bitset struct {
	bits []uint64
}

func newBitset(size int) *bitset {
	return &bitset{bits: make([]uint64, (size+63)/64)}
}

func (b *bitset) set(i uint32) {
	b.bits[i>>6] |= 1 << (i & 63)
}

func (b *bitset) has(i uint32) bool {
	return b.bits[i>>6]&(1<<(i&63)) != 0
}
