package fallback

import (
	"testing"

	"shardfall/internal/committee"
	"shardfall/internal/cosig"
)

// makeSignedShard builds a shard of n members with real BLS keys, derived
// from deterministic seeds so failures reproduce.
func makeSignedShard(t *testing.T, n int) (committee.Shard, []*cosig.KeyPair) {
	t.Helper()

	shard := make(committee.Shard, n)
	keys := make([]*cosig.KeyPair, n)

	for i := 0; i < n; i++ {
		seed := make([]byte, 32)
		seed[0] = byte(i + 1)
		seed[31] = 0x5F

		key, err := cosig.GenerateKeyFromSeed(seed)
		if err != nil {
			t.Fatalf("generate key %d: %v", i, err)
		}

		var pk committee.PublicKey
		copy(pk[:], key.PublicKeyBytes())

		keys[i] = key
		shard[i] = committee.ShardMember{
			PubKey: pk,
			Addr:   committee.NetworkAddress{Port: uint16(7000 + i)},
			Index:  uint32(i),
		}
	}

	return shard, keys
}

// buildFallbackBlock produces a fully co-signed fallback block promoting
// shard[leaderIdx], with the members marked in b2 signing CS2. CS1 is a
// first-round aggregate over the header by the same participants.
func buildFallbackBlock(
	t *testing.T,
	shard committee.Shard,
	keys []*cosig.KeyPair,
	epoch uint64,
	leaderIdx int,
	stateRoot [32]byte,
	b2 []bool,
) *Block {
	t.Helper()

	block := &Block{
		Header: Header{
			ShardID:           0,
			FallbackEpoch:     epoch,
			LeaderConsensusID: uint32(leaderIdx),
			LeaderPubKey:      shard[leaderIdx].PubKey,
			LeaderAddr:        shard[leaderIdx].Addr,
			StateRoot:         stateRoot,
		},
		B1: append([]bool(nil), b2...),
		B2: b2,
	}

	// First round: participants sign the header alone.
	headerBytes := make([]byte, HeaderSize)
	block.Header.Marshal(headerBytes, 0)

	cs1, err := cosig.AggregateSignatures(collectSigs(keys, block.B1, headerBytes))
	if err != nil {
		t.Fatalf("aggregate CS1: %v", err)
	}
	copy(block.CS1[:], cs1)

	// Final round: participants sign the canonical co-sig message.
	cs2, err := cosig.AggregateSignatures(collectSigs(keys, b2, CoSigMessage(block)))
	if err != nil {
		t.Fatalf("aggregate CS2: %v", err)
	}
	copy(block.CS2[:], cs2)

	return block
}

// collectSigs signs message with every key whose bit is set.
func collectSigs(keys []*cosig.KeyPair, bits []bool, message []byte) [][]byte {
	var sigs [][]byte

	for i, key := range keys {
		if i < len(bits) && bits[i] {
			sigs = append(sigs, key.Sign(message))
		}
	}

	return sigs
}
