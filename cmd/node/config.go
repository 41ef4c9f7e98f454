package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds the node configuration.
type Config struct {
	// DataPath is the directory for persistent storage.
	DataPath string

	// QUICAddress is the QUIC P2P listen address.
	QUICAddress string

	// KeyPath is the path to the Ed25519 transport key file.
	KeyPath string

	// PrivateKey is the node's Ed25519 transport key.
	PrivateKey ed25519.PrivateKey

	// TopologyPath is the path to the sharding topology JSON file.
	TopologyPath string

	// Peers are QUIC addresses to connect to at startup.
	Peers []string

	// Lookup runs the node as a lookup/directory observer instead of a
	// shard worker.
	Lookup bool

	// FallbackTimeout is the watchdog window for an in-flight fallback round.
	FallbackTimeout time.Duration

	// PoWDifficulty is the leading-zero-bit target for PoW rounds.
	PoWDifficulty int
}

// parseFlags parses command-line flags into Config.
func parseFlags() *Config {
	cfg := &Config{}
	var peers string
	var role string

	flag.StringVar(&cfg.DataPath, "data", "./data", "Data directory path")
	flag.StringVar(&cfg.QUICAddress, "quic", ":9000", "QUIC P2P address")
	flag.StringVar(&cfg.KeyPath, "key", "", "Ed25519 transport key path (generates new if missing)")
	flag.StringVar(&cfg.TopologyPath, "topology", "./topology.json", "Sharding topology JSON path")
	flag.StringVar(&peers, "peers", "", "Comma-separated peer QUIC addresses")
	flag.StringVar(&role, "role", "shard", "Node role: shard or lookup")
	flag.DurationVar(&cfg.FallbackTimeout, "fallback-timeout", 90*time.Second, "Fallback round watchdog window")
	flag.IntVar(&cfg.PoWDifficulty, "pow-difficulty", 12, "PoW leading-zero-bit difficulty")
	flag.Parse()

	if peers != "" {
		cfg.Peers = strings.Split(peers, ",")
	}

	cfg.Lookup = role == "lookup"

	return cfg
}

// loadOrGenerateKey loads the transport key from file or generates a new one.
func loadOrGenerateKey(keyPath string) (ed25519.PrivateKey, error) {
	if keyPath == "" {
		return generateNewKey()
	}

	data, err := os.ReadFile(keyPath)
	if os.IsNotExist(err) {
		return generateAndSaveKey(keyPath)
	}

	if err != nil {
		return nil, fmt.Errorf("read key file:\n%w", err)
	}

	if len(data) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(data), ed25519.PrivateKeySize)
	}

	return ed25519.PrivateKey(data), nil
}

// generateNewKey creates a new Ed25519 private key.
func generateNewKey() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key:\n%w", err)
	}

	return priv, nil
}

// generateAndSaveKey creates a new key and saves it to the given path.
func generateAndSaveKey(path string) (ed25519.PrivateKey, error) {
	priv, err := generateNewKey()
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, priv, 0600); err != nil {
		return nil, fmt.Errorf("save key to %s:\n%w", path, err)
	}

	return priv, nil
}
