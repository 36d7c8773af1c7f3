package alfred

import "net"

// Sender is the socket I/O collaborator: send a frame to dest_ip out
// iface. The core never binds a socket itself; internal/netio supplies
// the concrete UDP multicast implementation.
type Sender interface {
	SendFrame(iface *Interface, dest net.IP, frame []byte) error
}

// MACResolver is the peer-resolution collaborator: resolve a source IP on
// iface to a hardware address, or report failure. internal/meshtable
// supplies a default implementation; any mesh link-quality query stays
// entirely external to this interface.
type MACResolver interface {
	ResolveMAC(iface *Interface, ip net.IP) (MAC, bool)
}

// Interface is the binding context supplied to every core call: socket
// handles live in the Sender, not here, but scope-id, own-address
// filtering, and the per-interface peer table are owned by the core.
type Interface struct {
	Name        string
	OwnAddrs    []net.IP
	ScopeID     int
	MulticastIP net.IP
	Peers       *PeerTable
}

// IsOwnAddress reports whether ip matches one of this interface's own
// addresses, so the dispatcher can reject frames we sent ourselves.
func (i *Interface) IsOwnAddress(ip net.IP) bool {
	for _, own := range i.OwnAddrs {
		if own.Equal(ip) {
			return true
		}
	}
	return false
}
