package chainstate

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/klauspost/compress/zstd"
)

const (
	// walSyncInterval is the interval between background WAL syncs.
	walSyncInterval = 100 * time.Millisecond
)

// Key layout. Metadata is a flat namespace; archived fallback blocks are
// keyed by epoch and shard so prefix scans walk them in order.
var (
	keyEpoch     = []byte("meta/epoch")
	keyStateRoot = []byte("meta/stateroot")
	prefixBlock  = []byte("fb/")
)

// Store persists chain state in Pebble. Writes are non-blocking (NoSync);
// a background goroutine periodically syncs the WAL. The current epoch and
// state root are cached in memory so the fallback hot path never touches
// disk to read them.
type Store struct {
	db       *pebble.DB
	enc      *zstd.Encoder
	dec      *zstd.Decoder
	stopSync chan struct{}
	wg       sync.WaitGroup

	mu    sync.RWMutex
	epoch uint64
	root  [32]byte
}

// Open opens or creates a store at the given path.
func Open(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(32 << 20), // 32 MB cache
		MemTableSize:                16 << 20,                  // 16 MB memtable
		MemTableStopWritesThreshold: 2,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create encoder:\n%w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("create decoder:\n%w", err)
	}

	s := &Store{
		db:       db,
		enc:      enc,
		dec:      dec,
		stopSync: make(chan struct{}),
	}

	if err := s.loadCached(); err != nil {
		s.dec.Close()
		s.enc.Close()
		db.Close()
		return nil, err
	}

	s.startSyncLoop()

	return s, nil
}

// loadCached restores the cached epoch and state root from disk.
func (s *Store) loadCached() error {
	epochBytes, err := s.get(keyEpoch)
	if err != nil {
		return err
	}
	if len(epochBytes) == 8 {
		s.epoch = binary.BigEndian.Uint64(epochBytes)
	}

	rootBytes, err := s.get(keyStateRoot)
	if err != nil {
		return err
	}
	if len(rootBytes) == 32 {
		copy(s.root[:], rootBytes)
	}

	return nil
}

// CurrentEpoch returns the current epoch number.
func (s *Store) CurrentEpoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.epoch
}

// SetCurrentEpoch records a new current epoch.
func (s *Store) SetCurrentEpoch(epoch uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], epoch)

	if err := s.db.Set(keyEpoch, buf[:], pebble.NoSync); err != nil {
		return err
	}

	s.mu.Lock()
	s.epoch = epoch
	s.mu.Unlock()

	return nil
}

// StateRoot returns the current global state root hash.
func (s *Store) StateRoot() [32]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.root
}

// SetStateRoot records a new global state root hash.
func (s *Store) SetStateRoot(root [32]byte) error {
	if err := s.db.Set(keyStateRoot, root[:], pebble.NoSync); err != nil {
		return err
	}

	s.mu.Lock()
	s.root = root
	s.mu.Unlock()

	return nil
}

// ArchiveFallbackBlock stores an accepted fallback block's raw bytes,
// zstd-compressed, keyed by epoch and shard.
func (s *Store) ArchiveFallbackBlock(epoch uint64, shardID uint32, raw []byte) error {
	return s.db.Set(blockKey(epoch, shardID), s.enc.EncodeAll(raw, nil), pebble.NoSync)
}

// FallbackBlock retrieves an archived fallback block's raw bytes.
// Returns nil with no error if none is archived for that epoch and shard.
func (s *Store) FallbackBlock(epoch uint64, shardID uint32) ([]byte, error) {
	compressed, err := s.get(blockKey(epoch, shardID))
	if err != nil || compressed == nil {
		return nil, err
	}

	raw, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress archived block:\n%w", err)
	}

	return raw, nil
}

// blockKey builds the archive key for an epoch and shard.
func blockKey(epoch uint64, shardID uint32) []byte {
	key := make([]byte, len(prefixBlock)+12)
	copy(key, prefixBlock)
	binary.BigEndian.PutUint64(key[len(prefixBlock):], epoch)
	binary.BigEndian.PutUint32(key[len(prefixBlock)+8:], shardID)

	return key
}

// get reads a key, returning nil if it does not exist.
func (s *Store) get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// Copy the value since it's invalid after closer.Close()
	result := make([]byte, len(value))
	copy(result, value)

	return result, nil
}

// Close stops the sync goroutine and closes the database after a final sync.
func (s *Store) Close() error {
	close(s.stopSync)
	s.wg.Wait()

	if err := s.sync(); err != nil {
		return err
	}

	s.dec.Close()
	s.enc.Close()

	return s.db.Close()
}

// startSyncLoop starts the background goroutine that periodically syncs the WAL.
func (s *Store) startSyncLoop() {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(walSyncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = s.sync()
			case <-s.stopSync:
				return
			}
		}
	}()
}

// sync forces a WAL sync to disk.
func (s *Store) sync() error {
	return s.db.LogData(nil, pebble.Sync)
}
