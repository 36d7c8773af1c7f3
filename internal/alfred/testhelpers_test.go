package alfred

import (
	"net"

	"github.com/danmuck/alfredd/internal/wire"
)

type sentFrame struct {
	Dest  net.IP
	Frame wire.Frame
	Raw   []byte
}

type fakeSender struct {
	sent []sentFrame
}

func (s *fakeSender) SendFrame(iface *Interface, dest net.IP, raw []byte) error {
	f, err := wire.Decode(raw, ProtocolVersion, 0)
	if err != nil {
		return err
	}
	s.sent = append(s.sent, sentFrame{Dest: dest, Frame: f, Raw: raw})
	return nil
}

type staticResolver struct {
	byIP map[string]MAC
}

func newStaticResolver() *staticResolver {
	return &staticResolver{byIP: make(map[string]MAC)}
}

func (r *staticResolver) set(ip net.IP, mac MAC) {
	r.byIP[ip.String()] = mac
}

func (r *staticResolver) ResolveMAC(iface *Interface, ip net.IP) (MAC, bool) {
	mac, ok := r.byIP[ip.String()]
	return mac, ok
}

func newTestCore(mode OpMode, sender Sender, resolver MACResolver) *Core {
	return NewCore(Config{
		Mode:     mode,
		Sender:   sender,
		Resolver: resolver,
	})
}
