package cosig

import (
	"bytes"
	"testing"
)

// TestBitVectorGolden tests the exact wire bytes against known-good vectors.
// The layout is a protocol contract; these bytes must never change.
func TestBitVectorGolden(t *testing.T) {
	cases := []struct {
		name string
		bits []bool
		want []byte
	}{
		{
			name: "empty",
			bits: nil,
			want: []byte{0x00, 0x00},
		},
		{
			name: "three of four",
			bits: []bool{true, true, true, false},
			want: []byte{0x00, 0x04, 0x07},
		},
		{
			name: "first of four",
			bits: []bool{true, false, false, false},
			want: []byte{0x00, 0x04, 0x01},
		},
		{
			name: "nine bits crossing a byte boundary",
			bits: []bool{true, false, false, false, false, false, false, false, true},
			want: []byte{0x00, 0x09, 0x01, 0x01},
		},
		{
			name: "all set in one byte",
			bits: []bool{true, true, true, true, true, true, true, true},
			want: []byte{0x00, 0x08, 0xFF},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, BitVectorSize(len(tc.bits)))
			PutBitVector(buf, 0, tc.bits)

			if !bytes.Equal(buf, tc.want) {
				t.Errorf("encoded bytes: got %x, want %x", buf, tc.want)
			}
		})
	}
}

// TestBitVectorRoundTripAtOffset tests encode/decode at a nonzero offset,
// the way the canonical co-sig message embeds it.
func TestBitVectorRoundTripAtOffset(t *testing.T) {
	bits := []bool{true, false, true, true, false, false, true, false, false, true, true}
	const offset = 37

	buf := make([]byte, offset+BitVectorSize(len(bits)))
	PutBitVector(buf, offset, bits)

	got, consumed, err := BitVectorAt(buf, offset)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if consumed != BitVectorSize(len(bits)) {
		t.Errorf("consumed: got %d, want %d", consumed, BitVectorSize(len(bits)))
	}

	if len(got) != len(bits) {
		t.Fatalf("length: got %d, want %d", len(got), len(bits))
	}

	for i := range bits {
		if got[i] != bits[i] {
			t.Errorf("bit %d: got %v, want %v", i, got[i], bits[i])
		}
	}
}

// TestBitVectorTruncated tests that short buffers are rejected, not read
// out of bounds.
func TestBitVectorTruncated(t *testing.T) {
	if _, _, err := BitVectorAt([]byte{0x00}, 0); err == nil {
		t.Error("missing count should fail")
	}

	// Count says 16 bits but only one packed byte follows.
	if _, _, err := BitVectorAt([]byte{0x00, 0x10, 0xFF}, 0); err == nil {
		t.Error("truncated packed bytes should fail")
	}
}

// TestCountSet tests participant counting.
func TestCountSet(t *testing.T) {
	if got := CountSet([]bool{true, false, true, true}); got != 3 {
		t.Errorf("CountSet: got %d, want 3", got)
	}

	if got := CountSet(nil); got != 0 {
		t.Errorf("CountSet(nil): got %d, want 0", got)
	}
}

// TestQuorumSize tests the consensus threshold for representative sizes.
func TestQuorumSize(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{1, 1},
		{3, 3},
		{4, 3},
		{6, 5},
		{10, 7},
		{100, 67},
	}

	for _, tc := range cases {
		if got := QuorumSize(tc.n); got != tc.want {
			t.Errorf("QuorumSize(%d): got %d, want %d", tc.n, got, tc.want)
		}
	}
}
