package fallback

import (
	"bytes"
	"encoding/binary"
	"testing"

	"shardfall/internal/committee"
	"shardfall/internal/cosig"
)

// TestHeaderGoldenBytes tests the canonical header layout byte for byte.
// The header is part of the co-signed payload; this layout is frozen.
func TestHeaderGoldenBytes(t *testing.T) {
	var pk committee.PublicKey
	for i := range pk {
		pk[i] = byte(i)
	}

	var root [32]byte
	for i := range root {
		root[i] = 0xA0 | byte(i%16)
	}

	h := Header{
		ShardID:           3,
		FallbackEpoch:     0x0102030405060708,
		LeaderConsensusID: 9,
		LeaderPubKey:      pk,
		LeaderAddr: committee.NetworkAddress{
			IP:   [16]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xFF, 0xFF, 10, 0, 0, 7},
			Port: 0xBEEF,
		},
		StateRoot: root,
	}

	buf := make([]byte, HeaderSize)
	h.Marshal(buf, 0)

	want := make([]byte, 0, HeaderSize)
	want = append(want, 0x00, 0x00, 0x00, 0x03)                               // shard id
	want = append(want, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08)       // epoch
	want = append(want, 0x00, 0x00, 0x00, 0x09)                               // leader id
	want = append(want, pk[:]...)                                             // leader key
	want = append(want, h.LeaderAddr.IP[:]...)                                // leader IP
	want = append(want, 0xBE, 0xEF)                                           // leader port
	want = append(want, root[:]...)                                           // state root

	if len(want) != HeaderSize {
		t.Fatalf("golden vector size %d, want %d", len(want), HeaderSize)
	}

	if !bytes.Equal(buf, want) {
		t.Errorf("header bytes:\ngot  %x\nwant %x", buf, want)
	}
}

// TestHeaderRoundTrip tests marshal/unmarshal at a nonzero offset.
func TestHeaderRoundTrip(t *testing.T) {
	shard, _ := makeSignedShard(t, 3)

	h := Header{
		ShardID:           1,
		FallbackEpoch:     42,
		LeaderConsensusID: 2,
		LeaderPubKey:      shard[2].PubKey,
		LeaderAddr:        shard[2].Addr,
		StateRoot:         [32]byte{1, 2, 3},
	}

	const offset = 11
	buf := make([]byte, offset+HeaderSize)
	h.Marshal(buf, offset)

	got, err := UnmarshalHeader(buf, offset)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got != h {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, h)
	}

	if _, err := UnmarshalHeader(buf, offset+1); err == nil {
		t.Error("truncated header should fail")
	}
}

// TestBlockRoundTrip tests full wire encode/decode of a signed block.
func TestBlockRoundTrip(t *testing.T) {
	shard, keys := makeSignedShard(t, 4)
	block := buildFallbackBlock(t, shard, keys, 7, 2, [32]byte{0xEE}, []bool{true, true, true, false})

	raw := EncodeBlock(block)

	got, err := DecodeBlock(raw, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.Header != block.Header {
		t.Errorf("header mismatch: %+v vs %+v", got.Header, block.Header)
	}

	if got.CS1 != block.CS1 || got.CS2 != block.CS2 {
		t.Error("signature bytes changed in round trip")
	}

	for i := range block.B2 {
		if got.B1[i] != block.B1[i] || got.B2[i] != block.B2[i] {
			t.Errorf("bitmap bit %d changed in round trip", i)
		}
	}
}

// TestDecodeBlockAtOffset tests decoding with a message-envelope offset.
func TestDecodeBlockAtOffset(t *testing.T) {
	shard, keys := makeSignedShard(t, 4)
	block := buildFallbackBlock(t, shard, keys, 1, 0, [32]byte{}, []bool{true, true, true, true})

	msg := EncodeMessage(block)

	if msg[0] != MsgTypeFallbackBlock {
		t.Fatalf("message type: got %#x, want %#x", msg[0], MsgTypeFallbackBlock)
	}

	got, err := DecodeBlock(msg, 1)
	if err != nil {
		t.Fatalf("decode at offset: %v", err)
	}

	if got.Header != block.Header {
		t.Error("header mismatch after envelope decode")
	}
}

// TestDecodeBlockRejectsTruncation tests that every truncation point fails
// cleanly instead of panicking.
func TestDecodeBlockRejectsTruncation(t *testing.T) {
	shard, keys := makeSignedShard(t, 4)
	block := buildFallbackBlock(t, shard, keys, 1, 0, [32]byte{}, []bool{true, true, true, false})

	raw := EncodeBlock(block)

	for cut := 0; cut < len(raw); cut += 13 {
		if _, err := DecodeBlock(raw[:cut], 0); err == nil {
			t.Errorf("truncation at %d bytes should fail", cut)
		}
	}

	if _, err := DecodeBlock(raw, len(raw)+1); err == nil {
		t.Error("out-of-range offset should fail")
	}
}

// TestCoSigMessageLayout tests the canonical message offsets: header at 0,
// CS1 at HeaderSize, B1 bit-vector immediately after.
func TestCoSigMessageLayout(t *testing.T) {
	shard, keys := makeSignedShard(t, 4)
	bits := []bool{true, true, false, true}
	block := buildFallbackBlock(t, shard, keys, 5, 1, [32]byte{7}, bits)

	msg := CoSigMessage(block)

	wantSize := HeaderSize + cosig.SignatureSize + cosig.BitVectorSize(4)
	if len(msg) != wantSize {
		t.Fatalf("message size: got %d, want %d", len(msg), wantSize)
	}

	gotHeader, err := UnmarshalHeader(msg, 0)
	if err != nil || gotHeader != block.Header {
		t.Error("canonical message does not start with the header")
	}

	if !bytes.Equal(msg[HeaderSize:HeaderSize+cosig.SignatureSize], block.CS1[:]) {
		t.Error("CS1 not at HeaderSize")
	}

	bitOff := HeaderSize + cosig.SignatureSize
	if binary.BigEndian.Uint16(msg[bitOff:]) != 4 {
		t.Error("B1 bit-vector not immediately after CS1")
	}
}
