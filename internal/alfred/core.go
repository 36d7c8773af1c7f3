package alfred

import (
	"math/rand"
	"time"

	"github.com/danmuck/alfredd/internal/wire"
)

// ProtocolVersion is the single ALFRED_VERSION constant the build pins.
// Frames carrying any other version are rejected outright.
const ProtocolVersion uint8 = 0

// DefaultPort is ALFRED_PORT, the fixed UDP port every node binds.
const DefaultPort = 0x4242

// DefaultMaxPayload is the receiver buffer ceiling: frames larger than
// this are dropped before decode.
const DefaultMaxPayload = 1500

// Core is the single context value threaded through every protocol call.
// Handlers reach it from more than one goroutine (each interface's receive
// loop and the scheduler call it directly); the mutexes inside Cache,
// PeerTable, and TransactionTable serialize access to those stores. Core's
// own fields (BestServer, Interfaces, the tx-id generator) have no lock.
type Core struct {
	Cache        *Cache
	Transactions *TransactionTable
	Interfaces   []*Interface
	BestServer   *Peer
	Mode         OpMode
	IPv4Mode     bool
	Version      uint8
	MaxPayload   int

	Sender   Sender
	Resolver MACResolver
	Metrics  *Metrics

	// ClientRequestFinish is invoked when a transaction created via
	// RegisterClientRequest completes; it is the narrow seam into the
	// local IPC layer.
	ClientRequestFinish func(tx *Transaction)

	rng *rand.Rand
}

// Config bundles the construction-time parameters for NewCore.
type Config struct {
	Mode                  OpMode
	IPv4Mode              bool
	Version               uint8
	MaxPayload            int
	Sender                Sender
	Resolver              MACResolver
	OnClientRequestFinish func(tx *Transaction)
}

// NewCore builds a Core with an empty cache, peer table, and transaction
// table wired together.
func NewCore(cfg Config) *Core {
	if cfg.Version == 0 {
		cfg.Version = ProtocolVersion
	}
	if cfg.MaxPayload == 0 {
		cfg.MaxPayload = DefaultMaxPayload
	}

	c := &Core{
		Mode:                cfg.Mode,
		IPv4Mode:            cfg.IPv4Mode,
		Version:             cfg.Version,
		MaxPayload:          cfg.MaxPayload,
		Sender:              cfg.Sender,
		Resolver:            cfg.Resolver,
		ClientRequestFinish: cfg.OnClientRequestFinish,
		rng:                 rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	c.Metrics = NewMetrics(func() int {
		if c.Cache == nil {
			return 0
		}
		return c.Cache.Len()
	})
	c.Metrics.Register()
	c.Cache = NewCache(nil, c.Metrics)
	c.Transactions = NewTransactionTable(cfg.Mode, c.applyPushedRecord, c.finishClientTransaction, c.Metrics)
	return c
}

// AddInterface registers a binding context the core will dispatch frames
// for and transmit through.
func (c *Core) AddInterface(iface *Interface) {
	if iface.Peers == nil {
		iface.Peers = NewPeerTable()
	}
	c.Interfaces = append(c.Interfaces, iface)
}

// InterfaceByName returns the bound interface with the given name, if any.
func (c *Core) InterfaceByName(name string) (*Interface, bool) {
	for _, iface := range c.Interfaces {
		if iface.Name == name {
			return iface, true
		}
	}
	return nil, false
}

func (c *Core) applyPushedRecord(rec wire.DatasetRecord, peerMAC MAC, now time.Time) {
	c.Cache.UpsertRemote(rec.SourceMAC, rec.Type, rec.Version, rec.Payload, peerMAC, now)
}

func (c *Core) finishClientTransaction(tx *Transaction) {
	if c.ClientRequestFinish != nil {
		c.ClientRequestFinish(tx)
	}
}

// nextTxID draws a fresh random transaction id, as the transmitters do
// before every sync/push-local push, to avoid colliding with a
// transaction a peer originated concurrently.
func (c *Core) nextTxID() uint16 {
	return uint16(c.rng.Intn(1 << 16))
}

// NextTxID exposes nextTxID to callers outside the package (the client
// IPC seam) that need a fresh id before registering their own
// transaction.
func (c *Core) NextTxID() uint16 {
	return c.nextTxID()
}

// Sweep runs the retention sweeps: expired cache entries, stale peers on
// every interface, and stale transactions.
func (c *Core) Sweep(now time.Time, cacheTTL, peerTTL, txTTL time.Duration) {
	c.Cache.Sweep(now, cacheTTL)
	for _, iface := range c.Interfaces {
		iface.Peers.Sweep(now, peerTTL)
	}
	c.Transactions.Sweep(now, txTTL)
}

// SetBestServer installs the peer the external server-selection
// collaborator has chosen as the best master to push local data to.
func (c *Core) SetBestServer(p *Peer) {
	c.BestServer = p
}

// ElectBestServer is the minimal built-in server-selection collaborator:
// the highest-TQ peer across every bound interface becomes the best
// server. A full implementation with tie-breaking and hysteresis is
// expected to call SetBestServer itself instead; this exists so
// PushLocalData has somewhere to push when nothing more sophisticated is
// wired in.
func (c *Core) ElectBestServer() {
	var best *Peer
	for _, iface := range c.Interfaces {
		p, ok := iface.Peers.Best()
		if !ok {
			continue
		}
		if best == nil || p.TQ > best.TQ {
			best = &p
		}
	}
	c.SetBestServer(best)
}
