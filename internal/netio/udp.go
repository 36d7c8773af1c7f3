// Package netio is the concrete socket I/O collaborator for the alfred
// core: one UDP multicast/unicast listener per interface, feeding raw
// datagrams and their source address back to a callback. The core never touches a net.Conn directly;
// it only ever sees the alfred.Sender interface this package satisfies.
package netio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/danmuck/alfredd/internal/alfred"
)

// Link binds one UDP socket to a network interface: a multicast group for
// receiving neighbor frames, plus the ability to send unicast or multicast
// datagrams out the same socket. IPv6 link-local sends require the zone id
// so the kernel knows which interface to scope the destination to.
type Link struct {
	iface *net.Interface
	conn  *net.UDPConn
	port  int
	ipv4  bool
}

// Dial opens a UDP socket on iface's multicast group and port, joined to
// the group by net.ListenMulticastUDP. ipv4 selects "udp4"; otherwise the
// socket is "udp6" and joinScopedMulticast also sets IPV6_MULTICAST_IF to
// iface.
func Dial(iface *net.Interface, group net.IP, port int, ipv4 bool) (*Link, error) {
	network := "udp6"
	if ipv4 {
		network = "udp4"
	}
	maddr := &net.UDPAddr{IP: group, Port: port, Zone: iface.Name}
	conn, err := net.ListenMulticastUDP(network, iface, maddr)
	if err != nil {
		return nil, fmt.Errorf("netio: listen multicast on %s: %w", iface.Name, err)
	}
	if err := conn.SetReadBuffer(1 << 20); err != nil {
		conn.Close()
		return nil, fmt.Errorf("netio: set read buffer on %s: %w", iface.Name, err)
	}
	if !ipv4 {
		if err := joinScopedMulticast(conn, iface, group); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return &Link{iface: iface, conn: conn, port: port, ipv4: ipv4}, nil
}

// joinScopedMulticast sets the outgoing multicast interface via the raw
// socket option so frames this link sends leave on iface's link-local scope
// rather than whatever the kernel would otherwise pick.
func joinScopedMulticast(conn *net.UDPConn, iface *net.Interface, group net.IP) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("netio: syscall conn on %s: %w", iface.Name, err)
	}
	var opErr error
	err = raw.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_MULTICAST_IF, iface.Index)
	})
	if err != nil {
		return fmt.Errorf("netio: control on %s: %w", iface.Name, err)
	}
	if opErr != nil {
		return fmt.Errorf("netio: IPV6_MULTICAST_IF on %s: %w", iface.Name, opErr)
	}
	return nil
}

// SendFrame implements alfred.Sender. A link-local IPv6 destination is
// stamped with this link's zone so the kernel routes it out the right
// interface; the alfred.Interface passed in is only used for identity
// checks upstream and is otherwise ignored here since a Link is already
// bound to exactly one interface.
func (l *Link) SendFrame(_ *alfred.Interface, dest net.IP, frame []byte) error {
	addr := &net.UDPAddr{IP: dest, Port: l.port}
	if dest.IsLinkLocalUnicast() || dest.IsLinkLocalMulticast() {
		addr.Zone = l.iface.Name
	}
	_, err := l.conn.WriteToUDP(frame, addr)
	return err
}

// Run reads datagrams until ctx is canceled, handing each one plus its
// source address to onFrame. A read timeout is used instead of a blocking
// read so ctx cancellation is observed promptly, mirroring the netio
// listener loop this package's receive side is modeled on.
func (l *Link) Run(ctx context.Context, onFrame func(src net.IP, raw []byte)) error {
	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := l.conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return fmt.Errorf("netio: set read deadline on %s: %w", l.iface.Name, err)
		}
		n, src, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("netio: read on %s: %w", l.iface.Name, err)
		}
		onFrame(src.IP, buf[:n])
	}
}

// Close releases the underlying socket.
func (l *Link) Close() error {
	return l.conn.Close()
}

// Interface exposes the net.Interface this link is bound to, so callers
// building an alfred.Interface can read its index/MTU/hardware address.
func (l *Link) Interface() *net.Interface {
	return l.iface
}

// MultiLinkSender implements alfred.Sender across every bound interface,
// dispatching each SendFrame call to the Link whose name matches the
// alfred.Interface the core passed in. The core addresses interfaces by
// name and never needs to know how many real links back them.
type MultiLinkSender struct {
	Links map[string]*Link
}

// SendFrame implements alfred.Sender.
func (m *MultiLinkSender) SendFrame(iface *alfred.Interface, dest net.IP, frame []byte) error {
	link, ok := m.Links[iface.Name]
	if !ok {
		return fmt.Errorf("netio: no link bound for interface %q", iface.Name)
	}
	return link.SendFrame(iface, dest, frame)
}
