package fallback

import (
	"shardfall/internal/committee"
	"shardfall/internal/cosig"
	"shardfall/internal/logger"
)

// VerifyCoSignature decides whether a quorum of the shard's members
// produced CS2 over the block's canonical co-sig message. Every failure
// path logs its reason and returns false; nothing here panics on
// adversarial input.
func VerifyCoSignature(b *Block, shard committee.Shard) bool {
	if len(b.B2) != len(shard) {
		logger.Warn("co-sig bitmap size mismatch",
			"shard", b.Header.ShardID,
			"shard_size", len(shard),
			"bitmap_size", len(b.B2),
		)
		return false
	}

	keys := make([][]byte, 0, len(shard))

	for i, member := range shard {
		if b.B2[i] {
			pk := member.PubKey
			keys = append(keys, pk[:])
		}
	}

	if len(keys) < cosig.QuorumSize(len(shard)) {
		logger.Warn("co-sig below quorum",
			"shard", b.Header.ShardID,
			"signers", len(keys),
			"quorum", cosig.QuorumSize(len(shard)),
		)
		return false
	}

	aggKey, err := cosig.AggregatePublicKeys(keys)
	if err != nil {
		logger.Warn("aggregated key generation failed",
			"shard", b.Header.ShardID,
			"error", err,
		)
		return false
	}

	if !cosig.Verify(b.CS2[:], CoSigMessage(b), aggKey) {
		logger.Warn("co-sig verification failed",
			"shard", b.Header.ShardID,
			"epoch", b.Header.FallbackEpoch,
			"signers", len(keys),
		)
		return false
	}

	return true
}
