package committee

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

const (
	// PublicKeySize is the size of a compressed BLS public key in bytes.
	PublicKeySize = 48

	// AddrSize is the wire size of a network address in bytes (16-byte IP + 2-byte port).
	AddrSize = 18
)

// PublicKey is a compressed BLS public key identifying a node.
type PublicKey [PublicKeySize]byte

// String returns a short hex prefix for logging.
func (pk PublicKey) String() string {
	return fmt.Sprintf("%x", pk[:6])
}

// NetworkAddress identifies a node's network endpoint.
// The IP is stored in 16-byte form; IPv4 addresses use the IPv4-mapped layout.
type NetworkAddress struct {
	IP   [16]byte // IP is the node's address in 16-byte form
	Port uint16   // Port is the node's listen port
}

// AddrFrom builds a NetworkAddress from a parsed address and port.
func AddrFrom(ip netip.Addr, port uint16) NetworkAddress {
	return NetworkAddress{IP: ip.As16(), Port: port}
}

// String formats the address as host:port.
func (a NetworkAddress) String() string {
	ip := netip.AddrFrom16(a.IP).Unmap()
	return fmt.Sprintf("%s:%d", ip, a.Port)
}

// Marshal writes the address into buf at the given offset.
// Format: [16B IP] [2B big-endian port]
func (a NetworkAddress) Marshal(buf []byte, offset int) {
	copy(buf[offset:offset+16], a.IP[:])
	binary.BigEndian.PutUint16(buf[offset+16:offset+18], a.Port)
}

// UnmarshalAddr reads a NetworkAddress from data at the given offset.
func UnmarshalAddr(data []byte, offset int) NetworkAddress {
	var a NetworkAddress
	copy(a.IP[:], data[offset:offset+16])
	a.Port = binary.BigEndian.Uint16(data[offset+16 : offset+18])

	return a
}

// ShardMember is one participant of one shard.
// Index is the member's stable position in the shard: bit position i in any
// co-signature bitmap always refers to the member with Index i.
type ShardMember struct {
	PubKey PublicKey      // PubKey is the member's BLS public key
	Addr   NetworkAddress // Addr is the member's network address
	Index  uint32         // Index is the member's position in the shard
}

// Shard is the ordered, index-stable member list of one shard.
type Shard []ShardMember

// Entry is one member of the DS committee. Position carries the meaning:
// index 0 in the committee is the acting leader.
type Entry struct {
	PubKey PublicKey      // PubKey is the member's BLS public key
	Addr   NetworkAddress // Addr is the member's network address
}
