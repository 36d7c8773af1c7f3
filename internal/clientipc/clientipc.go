// Package clientipc is the narrow seam into the local IPC surface: a
// client asks the core to pull a dataset type from the mesh and waits for
// the resulting transaction to finish. The actual transport a real local
// client would use (a Unix domain socket, say) is explicitly out of
// scope; this package validates the request shape, registers the pull
// with the core and sends its REQUEST frame (Broker.Submit), and turns a
// finished alfred.Transaction back into a response envelope, the way a
// handshake ack validates a reply without owning the connection it
// travels over.
package clientipc

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/alfredd/internal/alfred"
)

var (
	ErrInvalidRequest = errors.New("clientipc: invalid request")
	ErrUnknownHandle  = errors.New("clientipc: no pending request for handle")
)

// Request is what a local client hands the core to ask for a dataset pull.
type Request struct {
	Handle        string
	Interface     string
	RequestedType int
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Handle) == "" {
		return fmt.Errorf("%w: missing handle", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Interface) == "" {
		return fmt.Errorf("%w: missing interface", ErrInvalidRequest)
	}
	if r.RequestedType != alfred.NoFilter && (r.RequestedType < 0 || r.RequestedType > 255) {
		return fmt.Errorf("%w: requested_type out of range", ErrInvalidRequest)
	}
	return nil
}

// Response is what the client eventually receives once its transaction
// finishes (or is abandoned).
type Response struct {
	Handle      string
	PacketCount int
	FinishedAt  time.Time
}

// pendingRequest is one handle's outstanding wait: the channel its
// Response will arrive on, plus (when the request was created through
// Submit) the hook that frees the backing core transaction if the client
// gives up before it finishes.
type pendingRequest struct {
	ch     chan Response
	cancel func()
}

// Broker tracks outstanding client requests by handle and turns the
// core's ClientRequestFinish callback into a Response a transport layer
// can deliver back to the waiting caller.
type Broker struct {
	mu      sync.Mutex
	pending map[string]pendingRequest
}

// NewBroker builds an empty request broker.
func NewBroker() *Broker {
	return &Broker{pending: make(map[string]pendingRequest)}
}

// Await registers handle as awaiting a result and returns a channel that
// receives exactly one Response once OnFinish delivers it. Use Submit
// instead when the caller also needs the core to register and send the
// underlying pull request.
func (b *Broker) Await(handle string) <-chan Response {
	ch := make(chan Response, 1)
	b.register(handle, ch, nil)
	return ch
}

func (b *Broker) register(handle string, ch chan Response, cancel func()) {
	b.mu.Lock()
	b.pending[handle] = pendingRequest{ch: ch, cancel: cancel}
	b.mu.Unlock()
}

// Submit validates req, registers a transaction on core awaiting a pull
// from the best known peer on req.Interface, sends the REQUEST frame, and
// returns the channel the eventual Response arrives on.
func (b *Broker) Submit(core *alfred.Core, req Request, now time.Time) (<-chan Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	iface, ok := core.InterfaceByName(req.Interface)
	if !ok {
		return nil, fmt.Errorf("clientipc: unknown interface %q", req.Interface)
	}
	peer, ok := iface.Peers.Best()
	if !ok {
		return nil, fmt.Errorf("clientipc: no known peer on interface %q", req.Interface)
	}

	txID := core.NextTxID()
	core.Transactions.RegisterClientRequest(peer.HWAddr, txID, req.RequestedType, req.Handle, now)

	ch := make(chan Response, 1)
	b.register(req.Handle, ch, func() { core.Transactions.Cancel(peer.HWAddr, txID) })

	core.RequestPull(iface, peer.Address, req.RequestedType, txID)
	return ch, nil
}

// OnFinish is the concrete alfred.Core.ClientRequestFinish callback: it
// looks up the transaction's ClientSocket (the handle Await or Submit
// registered) and delivers a Response to whoever is waiting on it.
func (b *Broker) OnFinish(tx *alfred.Transaction) {
	handle, ok := tx.ClientSocket.(string)
	if !ok {
		return
	}
	b.mu.Lock()
	entry, ok := b.pending[handle]
	if ok {
		delete(b.pending, handle)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	entry.ch <- Response{Handle: handle, PacketCount: tx.NumPackets(), FinishedAt: tx.LastRx}
	close(entry.ch)
}

// Abandon drops a pending handle without delivering a response, e.g. when
// the requesting client disconnects before its transaction completes. If
// the request was created through Submit, this also frees the backing
// core transaction instead of leaving it for the retention sweeper.
func (b *Broker) Abandon(handle string) {
	b.mu.Lock()
	entry, ok := b.pending[handle]
	if ok {
		delete(b.pending, handle)
	}
	b.mu.Unlock()
	if ok && entry.cancel != nil {
		entry.cancel()
	}
}
