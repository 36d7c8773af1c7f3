// Package meshtable supplies the default peer MAC resolution collaborator.
// The mesh link-quality table itself stays external (a real B.A.T.M.A.N.
// originator table, or whatever the host's routing daemon exposes) -- this
// package only turns a source IP into a hardware address, which for IPv6
// link-local peers is derivable from the address itself and needs no table
// lookup at all.
package meshtable

import (
	"fmt"
	"net"
	"sync"

	"github.com/danmuck/alfredd/internal/alfred"
)

// Resolver implements alfred.MACResolver. EUI-64 link-local IPv6 addresses
// are resolved by direct derivation; everything else (plain IPv4 peers,
// non-EUI-64 IPv6) falls back to a caller-populated static table, the
// mesh-link-quality-aware neighbor cache a real deployment would feed from
// its own originator/ARP data outside this package's scope.
type Resolver struct {
	mu     sync.RWMutex
	static map[string]alfred.MAC
}

// NewResolver builds a Resolver with an empty static table.
func NewResolver() *Resolver {
	return &Resolver{static: make(map[string]alfred.MAC)}
}

// Set installs (or overwrites) a static ip->mac mapping, the fallback path
// for peers whose MAC can't be derived from the IP alone. hw must be a
// 6-byte hardware address, the form callers loading a config file or a
// neighbor table naturally have on hand.
func (r *Resolver) Set(ip net.IP, hw net.HardwareAddr) error {
	mac, ok := alfred.MACFromHardwareAddr(hw)
	if !ok {
		return fmt.Errorf("meshtable: %v is not a 6-byte hardware address", hw)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.static[ip.String()] = mac
	return nil
}

// Forget removes a static mapping, e.g. once a neighbor-table sweep
// outside this package has decided the peer is gone.
func (r *Resolver) Forget(ip net.IP) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.static, ip.String())
}

// ResolveMAC implements alfred.MACResolver.
func (r *Resolver) ResolveMAC(_ *alfred.Interface, ip net.IP) (alfred.MAC, bool) {
	if mac, ok := alfred.EUI64ToMAC(ip); ok {
		return mac, true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	mac, ok := r.static[ip.String()]
	return mac, ok
}
