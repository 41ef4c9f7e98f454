package mempool

import "sync"

// TxHash identifies a transaction.
type TxHash [32]byte

// Pool buffers the per-epoch transaction state a shard node accumulates
// between final blocks: transactions it created, transactions processed in
// microblock consensus, and buffered consensus messages that arrived early.
//
// Each resource has its own lock: the three are touched from unrelated
// message-processing paths and share no invariant, so one coarse lock would
// serialize them for nothing.
type Pool struct {
	createdMu sync.Mutex
	created   []TxHash

	processedMu sync.Mutex
	processed   map[uint64][]TxHash // epoch -> processed records

	microMu sync.Mutex
	micro   map[uint32][][]byte // consensus id -> buffered messages
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{
		processed: make(map[uint64][]TxHash),
		micro:     make(map[uint32][][]byte),
	}
}

// AddCreated queues a locally created, not-yet-confirmed transaction.
func (p *Pool) AddCreated(tx TxHash) {
	p.createdMu.Lock()
	p.created = append(p.created, tx)
	p.createdMu.Unlock()
}

// CreatedLen returns the number of queued created transactions.
func (p *Pool) CreatedLen() int {
	p.createdMu.Lock()
	defer p.createdMu.Unlock()

	return len(p.created)
}

// ClearCreated discards all queued created transactions.
func (p *Pool) ClearCreated() {
	p.createdMu.Lock()
	p.created = nil
	p.createdMu.Unlock()
}

// RecordProcessed records a transaction processed during an epoch's
// microblock consensus.
func (p *Pool) RecordProcessed(epoch uint64, tx TxHash) {
	p.processedMu.Lock()
	p.processed[epoch] = append(p.processed[epoch], tx)
	p.processedMu.Unlock()
}

// ProcessedLen returns the number of records for an epoch.
func (p *Pool) ProcessedLen(epoch uint64) int {
	p.processedMu.Lock()
	defer p.processedMu.Unlock()

	return len(p.processed[epoch])
}

// DropProcessed discards the processed-transaction records for an epoch.
// Records for other epochs are kept.
func (p *Pool) DropProcessed(epoch uint64) {
	p.processedMu.Lock()
	delete(p.processed, epoch)
	p.processedMu.Unlock()
}

// BufferMicroblockMessage stores a consensus message that arrived before
// its round started.
func (p *Pool) BufferMicroblockMessage(consensusID uint32, payload []byte) {
	p.microMu.Lock()
	p.micro[consensusID] = append(p.micro[consensusID], payload)
	p.microMu.Unlock()
}

// MicroblockBufferLen returns the total number of buffered messages.
func (p *Pool) MicroblockBufferLen() int {
	p.microMu.Lock()
	defer p.microMu.Unlock()

	total := 0
	for _, msgs := range p.micro {
		total += len(msgs)
	}

	return total
}

// ClearMicroblockBuffer discards all buffered consensus messages.
func (p *Pool) ClearMicroblockBuffer() {
	p.microMu.Lock()
	p.micro = make(map[uint32][][]byte)
	p.microMu.Unlock()
}
