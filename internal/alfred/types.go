// Package alfred is the protocol engine: wire frame dispatch, the dataset
// cache, the peer table, and the multi-packet transaction state machine.
// The core is called from several goroutines (cmd/alfredd runs one receive
// loop per interface plus the scheduler, and the status surface reads
// from its HTTP handlers); the map-backed stores guard themselves with a
// mutex, and that is the only serialization the package does.
package alfred

import (
	"net"
	"time"

	"github.com/danmuck/alfredd/internal/wire"
)

// DataSource ranks the provenance of a dataset entry. Lower is more
// trusted: LOCAL beats FIRST_HAND beats SYNCED.
type DataSource uint8

const (
	SourceLocal     DataSource = 0
	SourceFirstHand DataSource = 1
	SourceSynced    DataSource = 2
)

func (s DataSource) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceFirstHand:
		return "first_hand"
	case SourceSynced:
		return "synced"
	default:
		return "unknown"
	}
}

// OpMode is the node's protocol role.
type OpMode uint8

const (
	ModeMaster OpMode = iota
	ModeSlave
)

// NoFilter means "every type", used as push's type_filter argument.
const NoFilter = -1

// MAC is a 6-byte hardware address; the wire codec's MAC re-exported so
// callers outside internal/wire don't need to import it directly.
type MAC = wire.MAC

// MACFromHardwareAddr converts a net.HardwareAddr into a wire MAC. It
// reports false when addr is not exactly 6 bytes long.
func MACFromHardwareAddr(addr net.HardwareAddr) (MAC, bool) {
	var m MAC
	if len(addr) != wire.MacLen {
		return m, false
	}
	copy(m[:], addr)
	return m, true
}

// DatasetKey identifies one cache entry.
type DatasetKey struct {
	SourceMAC MAC
	Type      uint8
}

// Dataset is one opaque, versioned payload contributed by SourceMAC.
type Dataset struct {
	SourceMAC MAC
	Type      uint8
	Version   uint8
	Payload   []byte
	Source    DataSource
	LastSeen  time.Time
}

// Peer is a remote master discovered on one interface.
type Peer struct {
	HWAddr   MAC
	Address  net.IP
	TQ       uint8
	LastSeen time.Time
}

// TxKey identifies one in-flight transaction.
type TxKey struct {
	PeerMAC MAC
	TxID    uint16
}

// pushPacket is one buffered PUSH_DATA frame belonging to a transaction,
// kept in arrival order.
type pushPacket struct {
	Seqno   uint16
	Records []wire.DatasetRecord
}

// Transaction is an in-progress multi-packet push reassembly.
type Transaction struct {
	PeerMAC             MAC
	TxID                uint16
	RequestedType       int // NoFilter (-1) or a concrete 0-255 type
	ExpectedPacketCount int // 0 means still open
	ClientSocket        ClientSocket
	LastRx              time.Time

	packets []pushPacket
}

// ClientSocket is the opaque handle the local IPC layer attaches to a
// transaction it is waiting on; the core never interprets it beyond
// passing it back through ClientRequestFinish.
type ClientSocket any

// NumPackets reports how many PUSH_DATA packets are currently buffered.
func (t *Transaction) NumPackets() int {
	return len(t.packets)
}
