package pow

import (
	"encoding/binary"
	"sync"

	"github.com/zeebo/blake3"

	"shardfall/internal/logger"
)

// DefaultDifficulty is the number of leading zero bits a solution hash
// must have.
const DefaultDifficulty = 12

// Result is a found proof-of-work solution.
type Result struct {
	Epoch uint64   // Epoch the round was mined for
	Nonce uint64   // Nonce satisfying the difficulty
	Hash  [32]byte // Hash is BLAKE3(seed || epoch || nonce)
}

// Worker runs proof-of-work rounds on a detached goroutine. Starting a new
// round cancels the previous one; submission of the result happens through
// the callback and is not awaited by the caller.
type Worker struct {
	difficulty int
	onFound    func(Result)

	mu     sync.Mutex
	cancel chan struct{}
	wg     sync.WaitGroup
}

// NewWorker creates a worker that reports solutions through onFound.
func NewWorker(difficulty int, onFound func(Result)) *Worker {
	if difficulty <= 0 {
		difficulty = DefaultDifficulty
	}

	return &Worker{
		difficulty: difficulty,
		onFound:    onFound,
	}
}

// Start begins mining a round for the given epoch and seed, cancelling any
// round in progress. Returns immediately.
func (w *Worker) Start(epoch uint64, seed [32]byte) {
	w.mu.Lock()
	if w.cancel != nil {
		close(w.cancel)
	}
	cancel := make(chan struct{})
	w.cancel = cancel
	w.wg.Add(1)
	w.mu.Unlock()

	logger.Info("starting PoW round", "epoch", epoch, "difficulty", w.difficulty)

	go func() {
		defer w.wg.Done()
		w.mine(epoch, seed, cancel)
	}()
}

// Cancel stops any round in progress and waits for the miner to exit.
func (w *Worker) Cancel() {
	w.mu.Lock()
	if w.cancel != nil {
		close(w.cancel)
		w.cancel = nil
	}
	w.mu.Unlock()

	w.wg.Wait()
}

// mine searches nonces until a solution is found or the round is cancelled.
func (w *Worker) mine(epoch uint64, seed [32]byte, cancel <-chan struct{}) {
	var input [48]byte
	copy(input[:32], seed[:])
	binary.BigEndian.PutUint64(input[32:40], epoch)

	for nonce := uint64(0); ; nonce++ {
		// Check for cancellation every so often, not per nonce.
		if nonce%4096 == 0 {
			select {
			case <-cancel:
				return
			default:
			}
		}

		binary.BigEndian.PutUint64(input[40:48], nonce)
		hash := blake3.Sum256(input[:])

		if leadingZeroBits(hash) >= w.difficulty {
			logger.Info("PoW solution found", "epoch", epoch, "nonce", nonce)

			if w.onFound != nil {
				w.onFound(Result{Epoch: epoch, Nonce: nonce, Hash: hash})
			}

			return
		}
	}
}

// leadingZeroBits counts leading zero bits of a hash.
func leadingZeroBits(hash [32]byte) int {
	bits := 0

	for _, b := range hash {
		if b == 0 {
			bits += 8
			continue
		}

		for mask := byte(0x80); mask != 0 && b&mask == 0; mask >>= 1 {
			bits++
		}

		break
	}

	return bits
}

// VerifySolution checks a claimed solution against the difficulty.
func VerifySolution(seed [32]byte, r Result, difficulty int) bool {
	var input [48]byte
	copy(input[:32], seed[:])
	binary.BigEndian.PutUint64(input[32:40], r.Epoch)
	binary.BigEndian.PutUint64(input[40:48], r.Nonce)

	hash := blake3.Sum256(input[:])

	return hash == r.Hash && leadingZeroBits(hash) >= difficulty
}
