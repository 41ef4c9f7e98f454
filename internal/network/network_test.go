package network

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	node, err := NewNode(Config{
		PrivateKey:     priv,
		ListenAddr:     "127.0.0.1:0",
		ReconnectDelay: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	if err := node.Start(); err != nil {
		t.Fatalf("start node: %v", err)
	}

	t.Cleanup(func() { node.Close() })

	return node
}

// TestFrameRoundTrip tests the length-prefixed framing.
func TestFrameRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x42},
		bytes.Repeat([]byte{0xAB}, 1<<16),
	}

	for _, payload := range payloads {
		var buf bytes.Buffer

		if err := writeFrame(&buf, payload); err != nil {
			t.Fatalf("write frame (%d bytes): %v", len(payload), err)
		}

		got, err := readFrame(&buf)
		if err != nil {
			t.Fatalf("read frame (%d bytes): %v", len(payload), err)
		}

		if !bytes.Equal(got, payload) {
			t.Errorf("frame round trip mismatch at %d bytes", len(payload))
		}
	}
}

// TestFrameRejectsOversize tests the inbound size cap.
func TestFrameRejectsOversize(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF}) // absurd length prefix

	if _, err := readFrame(&buf); err == nil {
		t.Error("expected error for oversize frame")
	}

	if err := writeFrame(&bytes.Buffer{}, make([]byte, maxFrameSize+1)); err == nil {
		t.Error("expected error writing oversize frame")
	}
}

// TestDedupFiltersRepeats tests first-seen semantics.
func TestDedupFiltersRepeats(t *testing.T) {
	d := NewDedup()
	defer d.Close()

	msg := []byte("fallback block announcement")

	if !d.FirstSeen(msg) {
		t.Error("first delivery should pass")
	}

	if d.FirstSeen(msg) {
		t.Error("second delivery should be filtered")
	}

	if !d.FirstSeen([]byte("different payload")) {
		t.Error("distinct payload should pass")
	}
}

// TestConnectAndDeliver tests end-to-end message delivery between two nodes.
func TestConnectAndDeliver(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)

	received := make(chan []byte, 1)
	b.OnMessage(func(_ *Peer, data []byte) {
		received <- data
	})

	peer, err := a.Connect(b.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	if !bytes.Equal(peer.PublicKey(), b.PublicKey()) {
		t.Error("peer identity does not match the remote node's key")
	}

	want := []byte{0x21, 0x01, 0x02, 0x03}

	if err := peer.Send(want); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case got := <-received:
		if !bytes.Equal(got, want) {
			t.Errorf("received %x, want %x", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
}

// TestDuplicateDeliveryFiltered tests that a repeated send reaches the
// handler only once.
func TestDuplicateDeliveryFiltered(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)

	received := make(chan []byte, 4)
	b.OnMessage(func(_ *Peer, data []byte) {
		received <- data
	})

	peer, err := a.Connect(b.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	msg := []byte("gossiped twice")

	for i := 0; i < 3; i++ {
		if err := peer.Send(msg); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("first copy not delivered")
	}

	select {
	case <-received:
		t.Error("duplicate copy reached the handler")
	case <-time.After(300 * time.Millisecond):
	}
}

// TestBroadcastReachesAllPeers tests fanout to every connected peer.
func TestBroadcastReachesAllPeers(t *testing.T) {
	hub := newTestNode(t)

	received := make(chan struct{}, 2)

	for i := 0; i < 2; i++ {
		spoke := newTestNode(t)
		spoke.OnMessage(func(_ *Peer, _ []byte) {
			received <- struct{}{}
		})

		if _, err := hub.Connect(spoke.Addr()); err != nil {
			t.Fatalf("connect spoke %d: %v", i, err)
		}
	}

	if got := len(hub.Peers()); got != 2 {
		t.Fatalf("hub has %d peers, want 2", got)
	}

	if err := hub.Broadcast([]byte("to everyone")); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(5 * time.Second):
			t.Fatalf("spoke %d did not receive the broadcast", i)
		}
	}
}

// TestGetPeerByKey tests peer lookup by identity.
func TestGetPeerByKey(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)

	if _, err := a.Connect(b.Addr()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if p := a.GetPeer(b.PublicKey()); p == nil {
		t.Error("connected peer not found by key")
	}

	_, other, _ := ed25519.GenerateKey(rand.Reader)
	if p := a.GetPeer(other.Public().(ed25519.PublicKey)); p != nil {
		t.Error("lookup of an unknown key returned a peer")
	}
}
