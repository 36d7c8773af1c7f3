package alfred

import (
	"net"

	"github.com/danmuck/alfredd/internal/wire"
)

// datasetRecordHeaderLen mirrors wire.DatasetRecordHeaderLen; kept as its
// own name here because the budget arithmetic below is phrased in terms
// of "the record" rather than the codec's internal constant.
const datasetRecordHeaderLen = wire.DatasetRecordHeaderLen

// pushDataBodyHeaderLen is the tx_id+seqno prefix of every PUSH_DATA body.
const pushDataBodyHeaderLen = 4

// Push builds and sends a multi-packet PUSH_DATA stream from the cache to
// destination on iface: datasets above maxSource are skipped, datasets
// not matching typeFilter (unless NoFilter) are skipped, records are
// packed until the next one would overflow the packet budget, and a
// single oversized record is silently skipped (counted, not logged).
// A STATUS_TXEND always follows iff at least one packet was sent or the
// request was filtered, even if the filtered result is empty.
func (c *Core) Push(iface *Interface, destination net.IP, maxSource DataSource, typeFilter int, txID uint16) {
	budget := c.MaxPayload - wire.HeaderLen - pushDataBodyHeaderLen
	var body []byte
	seqno := uint16(0)

	flush := func() {
		if len(body) == 0 {
			return
		}
		pushBody := append(encodePushPrefix(txID, seqno), body...)
		c.sendFrame(iface, destination, wire.PushData, pushBody)
		seqno++
		body = nil
	}

	for _, d := range c.Cache.Iterate() {
		if d.Source > maxSource {
			continue
		}
		if typeFilter != NoFilter && int(d.Type) != typeFilter {
			continue
		}

		rec := wire.EncodeDatasetRecord(wire.DatasetRecord{
			SourceMAC: d.SourceMAC,
			Type:      d.Type,
			Version:   d.Version,
			Payload:   d.Payload,
		})

		if len(rec) > budget {
			// Cannot be represented in any packet; skip it silently.
			c.Metrics.recordSkippedOversized()
			continue
		}

		if len(body)+len(rec) > budget {
			flush()
		}
		body = append(body, rec...)
	}
	flush()

	if seqno > 0 || typeFilter != NoFilter {
		c.sendFrame(iface, destination, wire.StatusTxEnd, wire.EncodeTxEndBody(wire.TxEndBody{TxID: txID, Seqno: seqno}))
	}
}

func encodePushPrefix(txID, seqno uint16) []byte {
	return wire.EncodePushDataBody(wire.PushDataBody{TxID: txID, Seqno: seqno})
}

// AnnounceMaster sends one empty ANNOUNCE_MASTER frame to the multicast
// address on every interface.
func (c *Core) AnnounceMaster() {
	for _, iface := range c.Interfaces {
		c.sendFrame(iface, iface.MulticastIP, wire.AnnounceMaster, nil)
	}
}

// SyncData pushes everything we know first-hand or better to every known
// peer on every interface, using a fresh random tx_id per push to avoid
// colliding with a peer-originated transaction.
func (c *Core) SyncData() {
	for _, iface := range c.Interfaces {
		for _, peer := range iface.Peers.List() {
			c.Push(iface, peer.Address, SourceFirstHand, NoFilter, c.nextTxID())
		}
	}
}

// PushLocalData pushes only our own LOCAL data to the current best
// server, if one has been elected. A no-op when none is set.
func (c *Core) PushLocalData() bool {
	if c.BestServer == nil {
		return false
	}
	for _, iface := range c.Interfaces {
		c.Push(iface, c.BestServer.Address, SourceLocal, NoFilter, c.nextTxID())
	}
	return true
}

// RequestPull sends a REQUEST frame asking destination to push back
// whatever it has of typeFilter. The wire field is a single type byte, so
// NoFilter goes out as requested type 0 and the receiver answers with its
// type-0 records only. This is the slave-side half of a pull: the caller
// registers the transaction with RegisterClientRequest first (as
// clientipc's Broker.Submit does) so the transaction table accepts the
// resulting PUSH_DATA/TXEND.
func (c *Core) RequestPull(iface *Interface, destination net.IP, typeFilter int, txID uint16) {
	requestedType := uint8(0)
	if typeFilter != NoFilter {
		requestedType = uint8(typeFilter)
	}
	c.sendFrame(iface, destination, wire.Request, wire.EncodeRequestBody(wire.RequestBody{
		RequestedType: requestedType,
		TxID:          txID,
	}))
}

// sendFrame is the common send primitive. It delegates the actual
// transport to the Sender collaborator and ignores every send error,
// permission errors included (best-effort UDP). Neither this function nor
// internal/netio's Link closes, invalidates, or re-creates a socket after
// a failed send.
func (c *Core) sendFrame(iface *Interface, dest net.IP, t wire.FrameType, body []byte) {
	raw := wire.Encode(t, c.Version, body)
	_ = c.Sender.SendFrame(iface, dest, raw)
}
