package cosig

// quorumThreshold is the minimum percentage of members required (67%).
const quorumThreshold = 67

// QuorumSize returns the minimum number of co-signing members required for
// a shard of n members. The same threshold gates every consensus round in
// the protocol, so changing it here would fork the chain.
func QuorumSize(n int) int {
	return (n*quorumThreshold + 99) / 100
}
