package committee

import "sync"

// DSCommittee is the ordered directory-service member list.
// Index 0 is the acting leader. All reads that need a consistent view take
// the same lock as Update, so a clear-and-rebuild is never observable.
type DSCommittee struct {
	mu      sync.Mutex
	entries []Entry
}

// NewDSCommittee creates a committee with the given initial entries.
func NewDSCommittee(entries []Entry) *DSCommittee {
	c := &DSCommittee{entries: make([]Entry, len(entries))}
	copy(c.entries, entries)

	return c
}

// Update replaces the committee with the members of the given shard,
// promoted so the member matching (leaderPK, leaderAddr) is at the front.
// Relative order of all other members follows the shard's order.
//
// The caller must have already established that exactly one shard member
// matches the leader identity; Update does not validate it.
func (c *DSCommittee) Update(shard Shard, leaderPK PublicKey, leaderAddr NetworkAddress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]Entry, 0, len(shard))

	for _, m := range shard {
		if m.PubKey == leaderPK && m.Addr == leaderAddr {
			entries = append([]Entry{{PubKey: leaderPK, Addr: leaderAddr}}, entries...)
		} else {
			entries = append(entries, Entry{PubKey: m.PubKey, Addr: m.Addr})
		}
	}

	c.entries = entries
}

// Leader returns the committee head. The second return value is false if
// the committee is empty.
func (c *DSCommittee) Leader() (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) == 0 {
		return Entry{}, false
	}

	return c.entries[0], true
}

// Snapshot returns a copy of the committee in order.
func (c *DSCommittee) Snapshot() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]Entry, len(c.entries))
	copy(entries, c.entries)

	return entries
}

// Len returns the committee size.
func (c *DSCommittee) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
