package committee

import "sync"

// ShardTable holds the sharding structure for the current epoch.
// The fallback path only reads it; SetShards is the epoch-setup entry
// used when a new directory block installs the next membership snapshot.
type ShardTable struct {
	mu     sync.RWMutex
	shards []Shard
}

// NewShardTable creates a table from an initial membership snapshot.
func NewShardTable(shards []Shard) *ShardTable {
	t := &ShardTable{}
	t.SetShards(shards)

	return t
}

// SetShards replaces the sharding structure with a new snapshot.
// Member indices are normalized to their positions.
func (t *ShardTable) SetShards(shards []Shard) {
	copied := make([]Shard, len(shards))

	for i, s := range shards {
		members := make(Shard, len(s))
		copy(members, s)

		for j := range members {
			members[j].Index = uint32(j)
		}

		copied[i] = members
	}

	t.mu.Lock()
	t.shards = copied
	t.mu.Unlock()
}

// NumShards returns the number of shards in the current snapshot.
func (t *ShardTable) NumShards() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.shards)
}

// Shard returns the member list for the given shard id.
// The second return value is false if the id is out of range.
func (t *ShardTable) Shard(id uint32) (Shard, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if int(id) >= len(t.shards) {
		return nil, false
	}

	return t.shards[id], true
}

// FindMember returns the member of the given shard whose public key and
// network address both match. The second return value is false if the shard
// id is out of range or no member matches.
func (t *ShardTable) FindMember(id uint32, pk PublicKey, addr NetworkAddress) (ShardMember, bool) {
	shard, ok := t.Shard(id)
	if !ok {
		return ShardMember{}, false
	}

	for _, m := range shard {
		if m.PubKey == pk && m.Addr == addr {
			return m, true
		}
	}

	return ShardMember{}, false
}
