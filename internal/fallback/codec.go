package fallback

import (
	"fmt"

	"shardfall/internal/cosig"
)

// MsgTypeFallbackBlock tags a fallback block on the wire.
const MsgTypeFallbackBlock = 0x21

// CoSigMessage reconstructs the exact bytes CS2 was signed over:
// the canonical header at offset 0, CS1 at HeaderSize, and the B1
// bit-vector immediately after CS1. Producer and verifier must agree on
// these offsets bit for bit, or no fallback block ever validates.
func CoSigMessage(b *Block) []byte {
	msg := make([]byte, HeaderSize+cosig.SignatureSize+cosig.BitVectorSize(len(b.B1)))

	b.Header.Marshal(msg, 0)
	copy(msg[HeaderSize:], b.CS1[:])
	cosig.PutBitVector(msg, HeaderSize+cosig.SignatureSize, b.B1)

	return msg
}

// EncodeBlock serializes a block for the wire.
// Format: [canonical header] [96B CS1] [B1 bit-vector] [96B CS2] [B2 bit-vector]
func EncodeBlock(b *Block) []byte {
	size := HeaderSize + cosig.SignatureSize + cosig.BitVectorSize(len(b.B1)) +
		cosig.SignatureSize + cosig.BitVectorSize(len(b.B2))
	buf := make([]byte, size)

	// The first three fields are the canonical co-sig message; keeping the
	// wire layout identical means a verifier can rebuild it from the header
	// without re-encoding decisions.
	b.Header.Marshal(buf, 0)
	off := HeaderSize

	copy(buf[off:], b.CS1[:])
	off += cosig.SignatureSize

	cosig.PutBitVector(buf, off, b.B1)
	off += cosig.BitVectorSize(len(b.B1))

	copy(buf[off:], b.CS2[:])
	off += cosig.SignatureSize

	cosig.PutBitVector(buf, off, b.B2)

	return buf
}

// DecodeBlock parses a block from data starting at the given offset.
// Trailing bytes after the block are ignored; the message framing owns them.
func DecodeBlock(data []byte, offset int) (*Block, error) {
	if offset < 0 || offset > len(data) {
		return nil, fmt.Errorf("offset %d out of range", offset)
	}

	header, err := UnmarshalHeader(data, offset)
	if err != nil {
		return nil, err
	}
	off := offset + HeaderSize

	b := &Block{Header: header}

	if len(data) < off+cosig.SignatureSize {
		return nil, fmt.Errorf("block truncated at CS1")
	}
	copy(b.CS1[:], data[off:])
	off += cosig.SignatureSize

	b.B1, _, err = cosig.BitVectorAt(data, off)
	if err != nil {
		return nil, fmt.Errorf("decode B1:\n%w", err)
	}
	off += cosig.BitVectorSize(len(b.B1))

	if len(data) < off+cosig.SignatureSize {
		return nil, fmt.Errorf("block truncated at CS2")
	}
	copy(b.CS2[:], data[off:])
	off += cosig.SignatureSize

	b.B2, _, err = cosig.BitVectorAt(data, off)
	if err != nil {
		return nil, fmt.Errorf("decode B2:\n%w", err)
	}

	return b, nil
}

// EncodeMessage wraps an encoded block in the one-byte network envelope.
func EncodeMessage(b *Block) []byte {
	raw := EncodeBlock(b)

	msg := make([]byte, 1+len(raw))
	msg[0] = MsgTypeFallbackBlock
	copy(msg[1:], raw)

	return msg
}
