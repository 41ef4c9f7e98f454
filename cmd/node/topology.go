package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/netip"
	"os"

	"shardfall/internal/committee"
)

// topologyMember is one committee member in the topology file.
type topologyMember struct {
	PubKey string `json:"pubkey"` // hex-encoded 48-byte BLS public key
	IP     string `json:"ip"`
	Port   uint16 `json:"port"`
}

// topologyFile is the on-disk sharding structure. The DS committee and
// every shard are listed in consensus order.
type topologyFile struct {
	DSCommittee []topologyMember   `json:"ds_committee"`
	Shards      [][]topologyMember `json:"shards"`
}

// loadTopology reads the sharding topology from a JSON file.
func loadTopology(path string) ([]committee.Shard, []committee.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read topology:\n%w", err)
	}

	var file topologyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parse topology:\n%w", err)
	}

	if len(file.Shards) == 0 {
		return nil, nil, fmt.Errorf("topology has no shards")
	}

	shards := make([]committee.Shard, len(file.Shards))

	for i, members := range file.Shards {
		if len(members) == 0 {
			return nil, nil, fmt.Errorf("shard %d is empty", i)
		}

		shard := make(committee.Shard, len(members))

		for j, m := range members {
			pk, addr, err := parseMember(m)
			if err != nil {
				return nil, nil, fmt.Errorf("shard %d member %d:\n%w", i, j, err)
			}

			shard[j] = committee.ShardMember{PubKey: pk, Addr: addr, Index: uint32(j)}
		}

		shards[i] = shard
	}

	dsCommittee := make([]committee.Entry, len(file.DSCommittee))

	for i, m := range file.DSCommittee {
		pk, addr, err := parseMember(m)
		if err != nil {
			return nil, nil, fmt.Errorf("ds committee member %d:\n%w", i, err)
		}

		dsCommittee[i] = committee.Entry{PubKey: pk, Addr: addr}
	}

	return shards, dsCommittee, nil
}

// parseMember decodes one topology entry into committee types.
func parseMember(m topologyMember) (committee.PublicKey, committee.NetworkAddress, error) {
	var pk committee.PublicKey

	raw, err := hex.DecodeString(m.PubKey)
	if err != nil {
		return pk, committee.NetworkAddress{}, fmt.Errorf("decode pubkey:\n%w", err)
	}

	if len(raw) != committee.PublicKeySize {
		return pk, committee.NetworkAddress{}, fmt.Errorf("pubkey size: got %d, want %d", len(raw), committee.PublicKeySize)
	}

	copy(pk[:], raw)

	ip, err := netip.ParseAddr(m.IP)
	if err != nil {
		return pk, committee.NetworkAddress{}, fmt.Errorf("parse ip:\n%w", err)
	}

	return pk, committee.AddrFrom(ip, m.Port), nil
}
