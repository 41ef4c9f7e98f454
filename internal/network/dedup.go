package network

import (
	"sync"
	"time"

	"github.com/zeebo/blake3"
)

const (
	// defaultDedupTTL is how long a message hash stays in the seen set.
	// Fallback blocks are re-gossiped by every receiver, so the same
	// bytes arrive from several peers within a short window.
	defaultDedupTTL = 10 * time.Second

	// dedupSweepInterval is the interval between expiry sweeps.
	dedupSweepInterval = 1 * time.Second
)

// Dedup filters messages that were already delivered recently. Hashes are
// blake3 over the full frame and expire after a TTL.
type Dedup struct {
	mu   sync.Mutex
	seen map[[32]byte]time.Time
	ttl  time.Duration
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewDedup creates a deduplication filter with the default TTL.
func NewDedup() *Dedup {
	d := &Dedup{
		seen: make(map[[32]byte]time.Time),
		ttl:  defaultDedupTTL,
		stop: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.sweepLoop()

	return d
}

// FirstSeen reports whether data has not been delivered within the TTL.
// A true result records the hash so later copies are filtered.
func (d *Dedup) FirstSeen(data []byte) bool {
	hash := blake3.Sum256(data)
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if ts, ok := d.seen[hash]; ok && now.Sub(ts) < d.ttl {
		return false
	}

	d.seen[hash] = now

	return true
}

// Close stops the sweep goroutine.
func (d *Dedup) Close() {
	close(d.stop)
	d.wg.Wait()
}

func (d *Dedup) sweepLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(dedupSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.sweep()
		case <-d.stop:
			return
		}
	}
}

func (d *Dedup) sweep() {
	now := time.Now()

	d.mu.Lock()
	for hash, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, hash)
		}
	}
	d.mu.Unlock()
}
