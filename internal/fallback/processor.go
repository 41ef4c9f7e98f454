package fallback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"shardfall/internal/committee"
	"shardfall/internal/logger"
)

// DefaultExtraTime is how long the processor waits for the node to reach a
// state that permits fallback processing before dropping the message.
const DefaultExtraTime = 10 * time.Second

// Rejection taxonomy. Every inbound fallback block that is not committed
// fails with exactly one of these; all are non-fatal and the message is
// simply dropped.
var (
	// ErrStateTimeout means the node never reached a compatible state.
	// Not evidence of a bad block: the next inbound message retries.
	ErrStateTimeout = errors.New("node state not ready for fallback block")

	// ErrDecode means the payload could not be parsed.
	ErrDecode = errors.New("malformed fallback block payload")

	// ErrWrongEpoch rejects stale or future fallback rounds.
	ErrWrongEpoch = errors.New("fallback epoch does not match current epoch")

	// ErrUnknownShard rejects a shard id outside the local sharding structure.
	ErrUnknownShard = errors.New("shard does not exist")

	// ErrInvalidLeaderIndex rejects a leader consensus id beyond the shard size.
	ErrInvalidLeaderIndex = errors.New("leader consensus id out of range")

	// ErrLeaderNotInShard rejects a leader identity absent from the shard.
	ErrLeaderNotInShard = errors.New("attested leader not found in shard")

	// ErrStateRootMismatch rejects a block built against a different world state.
	ErrStateRootMismatch = errors.New("state root mismatch")

	// ErrCoSigInvalid rejects a block whose co-signature does not verify.
	ErrCoSigInvalid = errors.New("co-signature verification failed")
)

// StateGate coordinates acceptance with the node's protocol-state machine.
type StateGate interface {
	// AwaitFallbackReady blocks until the state permits fallback processing
	// or the timeout elapses.
	AwaitFallbackReady(timeout time.Duration) bool

	// NotifyFallbackAccepted wakes everything waiting on the fallback state.
	NotifyFallbackAccepted()
}

// Chain exposes the node's view of global chain state.
type Chain interface {
	// CurrentEpoch returns the current epoch number.
	CurrentEpoch() uint64

	// StateRoot returns the locally computed state root hash.
	StateRoot() [32]byte

	// ArchiveFallbackBlock persists an accepted block's raw bytes.
	ArchiveFallbackBlock(epoch uint64, shardID uint32, raw []byte) error
}

// AccountTemp resets the speculative account-state scratch space.
type AccountTemp interface {
	InitTemp()
}

// TxCleaner drops per-epoch transaction buffers after a fallback commit.
type TxCleaner interface {
	// DropProcessed discards processed-transaction records for the epoch.
	DropProcessed(epoch uint64)

	// ClearCreated discards queued-but-unconfirmed created transactions.
	ClearCreated()

	// ClearMicroblockBuffer discards buffered microblock consensus messages.
	ClearMicroblockBuffer()
}

// PoWInitiator starts a proof-of-work round for the given epoch.
type PoWInitiator interface {
	InitiatePoW(epoch uint64)
}

// TaskScheduler runs a task on an independent goroutine, fire-and-forget.
type TaskScheduler interface {
	Submit(task func())
}

// RoundState holds the lookup role's local consensus counters.
type RoundState struct {
	mu          sync.Mutex
	round       uint32
	leaderIndex uint32
}

// Set records the current consensus round and leader index.
func (r *RoundState) Set(round, leaderIndex uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.round = round
	r.leaderIndex = leaderIndex
}

// Get returns the current consensus round and leader index.
func (r *RoundState) Get() (round, leaderIndex uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.round, r.leaderIndex
}

// Reset zeroes both counters.
func (r *RoundState) Reset() {
	r.Set(0, 0)
}

// Config assembles a Processor's collaborators.
type Config struct {
	Gate      StateGate
	Shards    *committee.ShardTable
	Committee *committee.DSCommittee
	Chain     Chain
	Accounts  AccountTemp
	Txs       TxCleaner
	PoW       PoWInitiator
	Scheduler TaskScheduler

	// RearmWatchdog re-arms the fallback-timeout watchdog; run detached
	// after a successful commit.
	RearmWatchdog func()

	// Lookup selects directory/lookup-only cleanup instead of shard duties.
	Lookup bool

	// ExtraTime overrides DefaultExtraTime for the state wait.
	ExtraTime time.Duration
}

// Processor turns an inbound candidate fallback block into either a
// committed DS-committee change or a dropped message. Rejections have no
// externally visible effect beyond logging.
type Processor struct {
	gate      StateGate
	shards    *committee.ShardTable
	committee *committee.DSCommittee
	chain     Chain
	accounts  AccountTemp
	txs       TxCleaner
	pow       PoWInitiator
	scheduler TaskScheduler
	rearm     func()
	lookup    bool
	extraTime time.Duration

	// Rounds is the lookup role's consensus counter state.
	Rounds RoundState
}

// NewProcessor creates a Processor from its collaborators.
func NewProcessor(cfg Config) *Processor {
	extraTime := cfg.ExtraTime
	if extraTime == 0 {
		extraTime = DefaultExtraTime
	}

	return &Processor{
		gate:      cfg.Gate,
		shards:    cfg.Shards,
		committee: cfg.Committee,
		chain:     cfg.Chain,
		accounts:  cfg.Accounts,
		txs:       cfg.Txs,
		pow:       cfg.PoW,
		scheduler: cfg.Scheduler,
		rearm:     cfg.RearmWatchdog,
		lookup:    cfg.Lookup,
		extraTime: extraTime,
	}
}

// ProcessFallbackBlock validates and commits a candidate fallback block
// received as raw bytes starting at offset. On success the DS committee has
// the attested leader at index 0 and per-epoch cleanup has run; on any
// error nothing before the commit point has taken effect.
func (p *Processor) ProcessFallbackBlock(payload []byte, offset int) error {
	if !p.gate.AwaitFallbackReady(p.extraTime) {
		logger.Info("not in a state for fallback block processing",
			"waited", p.extraTime,
		)
		return ErrStateTimeout
	}

	block, err := DecodeBlock(payload, offset)
	if err != nil {
		logger.Warn("fallback block decode failed", "error", err)
		return fmt.Errorf("%w:\n%v", ErrDecode, err)
	}

	header := &block.Header

	currentEpoch := p.chain.CurrentEpoch()
	if header.FallbackEpoch != currentEpoch {
		logger.Warn("fallback block for wrong epoch",
			"current_epoch", currentEpoch,
			"fallback_epoch", header.FallbackEpoch,
		)
		return fmt.Errorf("%w: current %d, block %d", ErrWrongEpoch, currentEpoch, header.FallbackEpoch)
	}

	shard, ok := p.shards.Shard(header.ShardID)
	if !ok {
		logger.Warn("fallback block for unknown shard",
			"shard", header.ShardID,
			"num_shards", p.shards.NumShards(),
		)
		return fmt.Errorf("%w: id %d", ErrUnknownShard, header.ShardID)
	}

	if int(header.LeaderConsensusID) >= len(shard) {
		logger.Warn("leader consensus id out of range",
			"leader_id", header.LeaderConsensusID,
			"shard_size", len(shard),
		)
		return fmt.Errorf("%w: id %d, shard size %d", ErrInvalidLeaderIndex, header.LeaderConsensusID, len(shard))
	}

	if _, ok := p.shards.FindMember(header.ShardID, header.LeaderPubKey, header.LeaderAddr); !ok {
		logger.Warn("attested leader not in sharding structure",
			"shard", header.ShardID,
			"leader_pubkey", header.LeaderPubKey,
			"leader_addr", header.LeaderAddr,
		)
		return ErrLeaderNotInShard
	}

	if localRoot := p.chain.StateRoot(); localRoot != header.StateRoot {
		logger.Warn("state root mismatch",
			"expected", fmt.Sprintf("%x", localRoot[:8]),
			"received", fmt.Sprintf("%x", header.StateRoot[:8]),
		)
		return ErrStateRootMismatch
	}

	if !VerifyCoSignature(block, shard) {
		logger.Warn("fallback block co-sig rejected",
			"epoch", currentEpoch,
			"shard", header.ShardID,
		)
		return ErrCoSigInvalid
	}

	// Commit point. From here the change is externally visible and the
	// remaining steps must not fail the call.
	p.committee.Update(shard, header.LeaderPubKey, header.LeaderAddr)
	p.gate.NotifyFallbackAccepted()

	p.finalize(block, payload, offset, currentEpoch)

	return nil
}

// finalize runs post-commit side effects: block archival, role-dependent
// cleanup and detached watchdog re-arm.
func (p *Processor) finalize(block *Block, payload []byte, offset int, epoch uint64) {
	if err := p.chain.ArchiveFallbackBlock(epoch, block.Header.ShardID, payload[offset:]); err != nil {
		logger.Warn("fallback block archive failed",
			"epoch", epoch,
			"shard", block.Header.ShardID,
			"error", err,
		)
	}

	if p.lookup {
		p.Rounds.Reset()
	} else {
		// Shard duties: drop everything speculative from the interrupted
		// epoch and start working on the next one.
		p.txs.DropProcessed(epoch)
		p.txs.ClearCreated()
		p.txs.ClearMicroblockBuffer()
		p.accounts.InitTemp()
		p.pow.InitiatePoW(epoch + 1)
	}

	logger.Info("DS committee fell back to shard",
		"epoch", epoch,
		"shard", block.Header.ShardID,
		"leader", block.Header.LeaderPubKey,
	)

	if p.scheduler != nil && p.rearm != nil {
		p.scheduler.Submit(p.rearm)
	}
}
