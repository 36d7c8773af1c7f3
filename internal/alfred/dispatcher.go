package alfred

import (
	"net"
	"time"

	"github.com/danmuck/alfredd/internal/wire"
)

// OnFrame is the dispatcher entry point: a received, not yet parsed,
// datagram arrives on iface from senderIP. It is decoded, validated, and
// routed to the appropriate handler.
func (c *Core) OnFrame(iface *Interface, senderIP net.IP, raw []byte) {
	now := time.Now()

	if iface.IsOwnAddress(senderIP) {
		c.Metrics.frameDropped("own_address")
		return
	}
	if senderIP.To4() == nil && !IsEUI64LinkLocal(senderIP) {
		c.Metrics.frameDropped("not_eui64_link_local")
		return
	}

	frame, err := wire.Decode(raw, c.Version, c.MaxPayload)
	if err != nil {
		c.Metrics.frameDropped(dropReasonForDecodeError(err))
		return
	}

	switch frame.Header.Type {
	case wire.AnnounceMaster:
		c.handleAnnounceMaster(iface, senderIP, now)
	case wire.Request:
		c.handleRequest(iface, senderIP, frame.Request)
	case wire.PushData:
		c.handlePushData(iface, senderIP, frame.PushData, now)
	case wire.StatusTxEnd:
		c.handleTxEnd(iface, senderIP, frame.TxEnd, now)
	default:
		c.Metrics.frameDropped("unknown_type")
	}
}

func dropReasonForDecodeError(err error) string {
	switch err {
	case wire.ErrShortHeader:
		return "short_header"
	case wire.ErrLengthMismatch:
		return "length_mismatch"
	case wire.ErrUnsupportedVersion:
		return "version_mismatch"
	case wire.ErrPayloadTooLarge:
		return "payload_too_large"
	case wire.ErrShortBody:
		return "short_body"
	default:
		return "malformed"
	}
}

func (c *Core) handleAnnounceMaster(iface *Interface, senderIP net.IP, now time.Time) {
	mac, ok := c.Resolver.ResolveMAC(iface, senderIP)
	if !ok {
		c.Metrics.frameDropped("resolve_mac_failed")
		return
	}
	iface.Peers.OnAnnounce(mac, senderIP, now)
}

// handleRequest immediately invokes the transmitter: a
// REQUEST triggers a full push back to the sender, filtered to the
// requested type, with max_source = SYNCED (anything we know, regardless
// of how we learned it).
func (c *Core) handleRequest(iface *Interface, senderIP net.IP, req wire.RequestBody) {
	c.Push(iface, senderIP, SourceSynced, int(req.RequestedType), req.TxID)
}

func (c *Core) handlePushData(iface *Interface, senderIP net.IP, body wire.PushDataBody, now time.Time) {
	peerMAC, ok := c.Resolver.ResolveMAC(iface, senderIP)
	if !ok {
		c.Metrics.frameDropped("resolve_mac_failed")
		return
	}
	accepted, _ := c.Transactions.OnPushData(peerMAC, body, now)
	if !accepted {
		c.Metrics.frameDropped("unknown_transaction")
	}
}

func (c *Core) handleTxEnd(iface *Interface, senderIP net.IP, body wire.TxEndBody, now time.Time) {
	peerMAC, ok := c.Resolver.ResolveMAC(iface, senderIP)
	if !ok {
		c.Metrics.frameDropped("resolve_mac_failed")
		return
	}
	accepted, _ := c.Transactions.OnTxEnd(peerMAC, body, now)
	if !accepted {
		c.Metrics.frameDropped("unknown_transaction")
	}
}
