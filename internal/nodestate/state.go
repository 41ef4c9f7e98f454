package nodestate

import (
	"sync"
	"time"
)

// State is the node's position in the epoch protocol.
type State uint8

const (
	// StatePoWSubmission is the proof-of-work submission window.
	StatePoWSubmission State = iota

	// StateMicroblockConsensus is the shard microblock consensus round.
	StateMicroblockConsensus

	// StateWaitingFinalBlock waits for the DS committee's final block.
	StateWaitingFinalBlock

	// StateFallbackConsensus is an in-progress fallback consensus round.
	StateFallbackConsensus

	// StateWaitingFallbackBlock waits for a co-signed fallback block.
	StateWaitingFallbackBlock

	// StateSyncing is catching up from peers.
	StateSyncing
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StatePoWSubmission:
		return "pow_submission"
	case StateMicroblockConsensus:
		return "microblock_consensus"
	case StateWaitingFinalBlock:
		return "waiting_final_block"
	case StateFallbackConsensus:
		return "fallback_consensus"
	case StateWaitingFallbackBlock:
		return "waiting_fallback_block"
	case StateSyncing:
		return "syncing"
	default:
		return "unknown"
	}
}

// Machine tracks the node's protocol state and lets the fallback path wait
// for a transition performed elsewhere. Transitions wake every waiter;
// waiters re-check the predicate on each wake, so a spurious or unrelated
// wake never produces a false positive.
type Machine struct {
	mu      sync.Mutex
	state   State
	changed chan struct{} // closed and replaced on every wake-up event
}

// NewMachine creates a machine in the given initial state.
func NewMachine(initial State) *Machine {
	return &Machine{
		state:   initial,
		changed: make(chan struct{}),
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Set transitions to the given state and wakes all waiters.
func (m *Machine) Set(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == s {
		return
	}

	m.state = s
	m.wakeLocked()
}

// AwaitFallbackReady blocks until the node is in StateWaitingFallbackBlock
// or the timeout elapses. Returns true if the predicate held; false means
// the caller should drop the message and try again on the next one.
func (m *Machine) AwaitFallbackReady(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		m.mu.Lock()
		if m.state == StateWaitingFallbackBlock {
			m.mu.Unlock()
			return true
		}
		ch := m.changed
		m.mu.Unlock()

		select {
		case <-ch:
		case <-timer.C:
			return false
		}
	}
}

// NotifyFallbackAccepted wakes all waiters without changing state, called
// once a fallback block has been committed.
func (m *Machine) NotifyFallbackAccepted() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.wakeLocked()
}

// wakeLocked wakes every waiter. Caller holds m.mu.
func (m *Machine) wakeLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}
