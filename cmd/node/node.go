package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"shardfall/internal/account"
	"shardfall/internal/chainstate"
	"shardfall/internal/committee"
	"shardfall/internal/fallback"
	"shardfall/internal/logger"
	"shardfall/internal/mempool"
	"shardfall/internal/network"
	"shardfall/internal/nodestate"
	"shardfall/internal/pow"
	"shardfall/internal/watchdog"
)

// relayFanout bounds re-gossip of accepted fallback blocks.
const relayFanout = 8

// Node wires the fallback subsystem together: storage, committee views,
// the state machine, the block processor and the P2P transport.
type Node struct {
	cfg *Config

	store    *chainstate.Store
	accounts *account.Store
	pool     *mempool.Pool

	shards      *committee.ShardTable
	dsCommittee *committee.DSCommittee

	machine   *nodestate.Machine
	scheduler *watchdog.Scheduler
	dog       *watchdog.Watchdog
	miner     *pow.Worker

	processor *fallback.Processor
	network   *network.Node
}

// NewNode creates and initializes a new node.
func NewNode(cfg *Config) (*Node, error) {
	n := &Node{cfg: cfg}

	if err := n.initStorage(); err != nil {
		return nil, err
	}

	if err := n.initTopology(); err != nil {
		n.Close()
		return nil, err
	}

	n.initWorkers()
	n.initProcessor()

	if err := n.initNetwork(); err != nil {
		n.Close()
		return nil, err
	}

	return n, nil
}

// initStorage opens the Pebble store and the in-memory account state.
func (n *Node) initStorage() error {
	if err := os.MkdirAll(n.cfg.DataPath, 0755); err != nil {
		return fmt.Errorf("create data directory:\n%w", err)
	}

	store, err := chainstate.Open(n.cfg.DataPath + "/db")
	if err != nil {
		return fmt.Errorf("open chain store:\n%w", err)
	}

	n.store = store
	n.accounts = account.NewStore()
	n.pool = mempool.New()

	return nil
}

// initTopology loads the sharding structure and seeds both committee views.
func (n *Node) initTopology() error {
	shards, dsEntries, err := loadTopology(n.cfg.TopologyPath)
	if err != nil {
		return err
	}

	n.shards = committee.NewShardTable(shards)
	n.dsCommittee = committee.NewDSCommittee(dsEntries)

	logger.Info("topology loaded",
		"shards", n.shards.NumShards(),
		"ds_committee", n.dsCommittee.Len(),
	)

	return nil
}

// initWorkers creates the state machine, task scheduler, fallback watchdog
// and the PoW worker.
func (n *Node) initWorkers() {
	n.machine = nodestate.NewMachine(nodestate.StateWaitingFallbackBlock)
	n.scheduler = watchdog.NewScheduler()
	n.dog = watchdog.NewWatchdog()

	n.miner = pow.NewWorker(n.cfg.PoWDifficulty, func(r pow.Result) {
		logger.Info("pow solution found",
			"epoch", r.Epoch,
			"nonce", r.Nonce,
			"hash", fmt.Sprintf("%x", r.Hash[:8]),
		)
	})
}

// initProcessor assembles the fallback block processor.
func (n *Node) initProcessor() {
	n.processor = fallback.NewProcessor(fallback.Config{
		Gate:          n.machine,
		Shards:        n.shards,
		Committee:     n.dsCommittee,
		Chain:         n.store,
		Accounts:      n.accounts,
		Txs:           n.pool,
		PoW:           n,
		Scheduler:     n.scheduler,
		RearmWatchdog: n.armFallbackWatchdog,
		Lookup:        n.cfg.Lookup,
	})
}

// InitiatePoW starts a PoW round for the given epoch, seeded with the
// current account state root.
func (n *Node) InitiatePoW(epoch uint64) {
	n.miner.Start(epoch, n.accounts.StateRoot())
}

// armFallbackWatchdog (re)starts the fallback round timer. Expiry means the
// expected fallback block never arrived within the window.
func (n *Node) armFallbackWatchdog() {
	n.dog.Arm(n.cfg.FallbackTimeout, func() {
		logger.Warn("fallback round timed out", "window", n.cfg.FallbackTimeout)
		n.machine.Set(nodestate.StateWaitingFallbackBlock)
	})
}

// initNetwork creates the QUIC transport node.
func (n *Node) initNetwork() error {
	node, err := network.NewNode(network.Config{
		PrivateKey: n.cfg.PrivateKey,
		ListenAddr: n.cfg.QUICAddress,
	})
	if err != nil {
		return fmt.Errorf("init network:\n%w", err)
	}

	n.network = node

	return nil
}

// Run starts the node and blocks until a shutdown signal.
func (n *Node) Run() error {
	n.network.OnMessage(n.handleMessage)

	if err := n.network.Start(); err != nil {
		return fmt.Errorf("start network:\n%w", err)
	}

	for _, addr := range n.cfg.Peers {
		if _, err := n.network.Connect(addr); err != nil {
			logger.Warn("peer connect failed", "addr", addr, "error", err)
			continue
		}

		logger.Info("peer connected", "addr", addr)
	}

	n.armFallbackWatchdog()

	return n.waitForShutdown()
}

// handleMessage dispatches an inbound message by its type byte.
func (n *Node) handleMessage(peer *network.Peer, data []byte) {
	if len(data) == 0 {
		return
	}

	switch data[0] {
	case fallback.MsgTypeFallbackBlock:
		// Copy before handing off: the processor may outlive the stream
		// buffer, and a relay reuses the same bytes.
		msg := make([]byte, len(data))
		copy(msg, data)

		n.scheduler.Submit(func() {
			if err := n.processor.ProcessFallbackBlock(msg, 1); err != nil {
				logger.Debug("fallback block dropped",
					"from", peer.Address(),
					"error", err,
				)
				return
			}

			// Accepted blocks keep spreading so slower nodes converge.
			_ = n.network.Gossip(msg, relayFanout)
		})

	default:
		logger.Debug("unknown message type",
			"type", fmt.Sprintf("0x%02x", data[0]),
			"from", peer.Address(),
		)
	}
}

// waitForShutdown blocks until SIGINT or SIGTERM is received.
func (n *Node) waitForShutdown() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	return n.Close()
}

// Close shuts down all node components gracefully.
func (n *Node) Close() error {
	if n.miner != nil {
		n.miner.Cancel()
	}

	if n.dog != nil {
		n.dog.Disarm()
	}

	if n.network != nil {
		n.network.Close()
	}

	if n.scheduler != nil {
		n.scheduler.Close()
	}

	if n.store != nil {
		n.store.Close()
	}

	return nil
}
