package fallback

import (
	"encoding/binary"
	"fmt"

	"shardfall/internal/committee"
	"shardfall/internal/cosig"
)

// Header field offsets within the canonical serialization. The header is
// part of the co-signed payload, so this layout is a protocol contract.
//
// Format: [4B shard id] [8B fallback epoch] [4B leader consensus id]
//         [48B leader public key] [18B leader address] [32B state root]
// All integers big-endian.
const (
	offShardID       = 0
	offFallbackEpoch = 4
	offLeaderID      = 12
	offLeaderPubKey  = 16
	offLeaderAddr    = offLeaderPubKey + committee.PublicKeySize
	offStateRoot     = offLeaderAddr + committee.AddrSize

	// HeaderSize is the canonical serialized header size.
	HeaderSize = offStateRoot + 32
)

// Header identifies the fallback round and the leader being promoted.
// Immutable once constructed.
type Header struct {
	ShardID           uint32                   // ShardID is the shard agreeing on the promotion
	FallbackEpoch     uint64                   // FallbackEpoch is the epoch the round belongs to
	LeaderConsensusID uint32                   // LeaderConsensusID is the leader's index within the shard
	LeaderPubKey      committee.PublicKey      // LeaderPubKey is the promoted leader's BLS key
	LeaderAddr        committee.NetworkAddress // LeaderAddr is the promoted leader's endpoint
	StateRoot         [32]byte                 // StateRoot commits to the world state the block was built on
}

// Marshal writes the canonical header bytes into buf at the given offset.
// buf must have room for HeaderSize bytes at offset.
func (h *Header) Marshal(buf []byte, offset int) {
	binary.BigEndian.PutUint32(buf[offset+offShardID:], h.ShardID)
	binary.BigEndian.PutUint64(buf[offset+offFallbackEpoch:], h.FallbackEpoch)
	binary.BigEndian.PutUint32(buf[offset+offLeaderID:], h.LeaderConsensusID)
	copy(buf[offset+offLeaderPubKey:], h.LeaderPubKey[:])
	h.LeaderAddr.Marshal(buf, offset+offLeaderAddr)
	copy(buf[offset+offStateRoot:], h.StateRoot[:])
}

// UnmarshalHeader reads a canonical header from data at the given offset.
func UnmarshalHeader(data []byte, offset int) (Header, error) {
	if len(data) < offset+HeaderSize {
		return Header{}, fmt.Errorf("header truncated: need %d bytes, have %d", HeaderSize, len(data)-offset)
	}

	var h Header
	h.ShardID = binary.BigEndian.Uint32(data[offset+offShardID:])
	h.FallbackEpoch = binary.BigEndian.Uint64(data[offset+offFallbackEpoch:])
	h.LeaderConsensusID = binary.BigEndian.Uint32(data[offset+offLeaderID:])
	copy(h.LeaderPubKey[:], data[offset+offLeaderPubKey:])
	h.LeaderAddr = committee.UnmarshalAddr(data, offset+offLeaderAddr)
	copy(h.StateRoot[:], data[offset+offStateRoot:])

	return h, nil
}

// Block is a co-signed attestation that a shard agreed to promote a new
// leader. B1/CS1 are the first-round commitment; B2/CS2 are the final
// aggregate, signed over the header, CS1 and B1.
type Block struct {
	Header Header                    // Header identifies round and leader
	CS1    [cosig.SignatureSize]byte // CS1 is the first-round aggregate signature
	B1     []bool                    // B1 marks first-round participants, one bit per shard member
	CS2    [cosig.SignatureSize]byte // CS2 is the final aggregate signature
	B2     []bool                    // B2 marks final-round participants, one bit per shard member
}
