package alfred

import (
	"net"
	"sync"
	"time"
)

// PeerTable is the per-interface set of known masters, keyed by hardware
// address. One instance lives on each Interface.
type PeerTable struct {
	mu    sync.RWMutex
	peers map[MAC]*Peer

	// onEvict, when set, is invoked (outside the lock) once per peer Sweep
	// reaps, so a MACResolver's own stale static mapping can be cleaned up
	// alongside the peer table's.
	onEvict func(Peer)
}

func NewPeerTable() *PeerTable {
	return &PeerTable{peers: make(map[MAC]*Peer)}
}

// OnEvict installs the callback Sweep invokes for every peer it reaps.
func (t *PeerTable) OnEvict(fn func(Peer)) {
	t.mu.Lock()
	t.onEvict = fn
	t.mu.Unlock()
}

// OnAnnounce records (or refreshes) a peer learned from an ANNOUNCE_MASTER.
func (t *PeerTable) OnAnnounce(senderMAC MAC, senderIP net.IP, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.peers[senderMAC]; ok {
		p.Address = senderIP
		p.LastSeen = now
		return
	}
	t.peers[senderMAC] = &Peer{HWAddr: senderMAC, Address: senderIP, LastSeen: now}
}

// UpdateTQ sets the link-quality metric for a known peer, supplied by the
// external mesh link-quality query. A no-op if the peer isn't known.
func (t *PeerTable) UpdateTQ(hwaddr MAC, tq uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.peers[hwaddr]; ok {
		p.TQ = tq
	}
}

// Get returns the peer with hwaddr, if known.
func (t *PeerTable) Get(hwaddr MAC) (Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.peers[hwaddr]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// List returns a snapshot of every known peer.
func (t *PeerTable) List() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, *p)
	}
	return out
}

// Best returns the peer with the highest TQ, or ok=false if the table is
// empty. Full best-server election (tie-breaking, hysteresis) is an
// external server-selection collaborator's job; this is the minimal
// fallback the core itself can offer when none is supplied externally.
func (t *PeerTable) Best() (Peer, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var best *Peer
	for _, p := range t.peers {
		if best == nil || p.TQ > best.TQ {
			best = p
		}
	}
	if best == nil {
		return Peer{}, false
	}
	return *best, true
}

// Sweep evicts peers whose last announce is older than ttl.
func (t *PeerTable) Sweep(now time.Time, ttl time.Duration) {
	t.mu.Lock()
	var evicted []Peer
	for mac, p := range t.peers {
		if now.Sub(p.LastSeen) > ttl {
			evicted = append(evicted, *p)
			delete(t.peers, mac)
		}
	}
	onEvict := t.onEvict
	t.mu.Unlock()

	if onEvict != nil {
		for _, p := range evicted {
			onEvict(p)
		}
	}
}
