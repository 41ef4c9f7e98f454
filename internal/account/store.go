package account

import (
	"encoding/binary"
	"sort"
	"sync"

	"github.com/zeebo/blake3"
)

// Address identifies an account.
type Address [32]byte

// Account is one entry in the world state.
type Account struct {
	Balance uint64 // Balance is the account's token balance
	Nonce   uint64 // Nonce is the account's transaction counter
}

// Store holds the committed world state plus a speculative scratch overlay.
// Microblock execution writes to the overlay; only a final block commit
// folds it into the committed map. A fallback discards the overlay wholesale
// via InitTemp.
type Store struct {
	mu        sync.RWMutex
	committed map[Address]Account
	temp      map[Address]Account
}

// NewStore creates an empty account store.
func NewStore() *Store {
	return &Store{
		committed: make(map[Address]Account),
		temp:      make(map[Address]Account),
	}
}

// Get returns the committed state of an account.
func (s *Store) Get(addr Address) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.committed[addr]
	return acc, ok
}

// Set commits an account state.
func (s *Store) Set(addr Address, acc Account) {
	s.mu.Lock()
	s.committed[addr] = acc
	s.mu.Unlock()
}

// GetTemp returns the speculative view of an account: the overlay entry if
// present, the committed entry otherwise.
func (s *Store) GetTemp(addr Address) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if acc, ok := s.temp[addr]; ok {
		return acc, true
	}

	acc, ok := s.committed[addr]
	return acc, ok
}

// SetTemp writes an account into the speculative overlay.
func (s *Store) SetTemp(addr Address, acc Account) {
	s.mu.Lock()
	s.temp[addr] = acc
	s.mu.Unlock()
}

// TempLen returns the number of overlay entries.
func (s *Store) TempLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.temp)
}

// InitTemp discards the speculative overlay. Called when the epoch the
// overlay was built for is abandoned.
func (s *Store) InitTemp() {
	s.mu.Lock()
	s.temp = make(map[Address]Account)
	s.mu.Unlock()
}

// StateRoot returns a commitment to the committed world state:
// BLAKE3 over (address, balance, nonce) triples in address order. The
// overlay never contributes; speculative state is not part of the root.
func (s *Store) StateRoot() [32]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addrs := make([]Address, 0, len(s.committed))
	for addr := range s.committed {
		addrs = append(addrs, addr)
	}

	// Map iteration is randomized; the root must be deterministic.
	sort.Slice(addrs, func(i, j int) bool {
		return string(addrs[i][:]) < string(addrs[j][:])
	})

	h := blake3.New()

	var buf [8]byte
	for _, addr := range addrs {
		acc := s.committed[addr]

		h.Write(addr[:])
		binary.BigEndian.PutUint64(buf[:], acc.Balance)
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], acc.Nonce)
		h.Write(buf[:])
	}

	var root [32]byte
	h.Sum(root[:0])

	return root
}
