package cosig

import (
	"encoding/binary"
	"fmt"
)

// Wire encoding for participation bit-vectors. The layout is a protocol
// contract: co-signatures are verified over bytes that embed it, so the
// producing and verifying sides must agree bit for bit.
//
// Format: [2B big-endian bit count] [ceil(n/8) packed bytes]
// Bit i lives at byte i/8, mask 1<<(i%8).

// BitVectorSize returns the encoded size of an n-bit vector.
func BitVectorSize(n int) int {
	return 2 + (n+7)/8
}

// PutBitVector writes bits into buf at the given offset.
// buf must have room for BitVectorSize(len(bits)) bytes at offset.
func PutBitVector(buf []byte, offset int, bits []bool) {
	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(bits)))

	packed := buf[offset+2 : offset+BitVectorSize(len(bits))]
	for i := range packed {
		packed[i] = 0
	}

	for i, set := range bits {
		if set {
			packed[i/8] |= 1 << (i % 8)
		}
	}
}

// BitVectorAt decodes a bit-vector from data at the given offset.
// Returns the bits and the number of bytes consumed.
func BitVectorAt(data []byte, offset int) ([]bool, int, error) {
	if len(data) < offset+2 {
		return nil, 0, fmt.Errorf("bit vector truncated: no count at offset %d", offset)
	}

	n := int(binary.BigEndian.Uint16(data[offset : offset+2]))
	size := BitVectorSize(n)

	if len(data) < offset+size {
		return nil, 0, fmt.Errorf("bit vector truncated: need %d bytes, have %d", size, len(data)-offset)
	}

	packed := data[offset+2 : offset+size]
	bits := make([]bool, n)

	for i := range bits {
		bits[i] = packed[i/8]&(1<<(i%8)) != 0
	}

	return bits, size, nil
}

// CountSet returns the number of true entries in bits.
func CountSet(bits []bool) int {
	count := 0

	for _, set := range bits {
		if set {
			count++
		}
	}

	return count
}
