package meshtable

import (
	"net"
	"testing"

	"github.com/danmuck/alfredd/internal/alfred"
)

func TestResolveMACPrefersEUI64Derivation(t *testing.T) {
	r := NewResolver()
	mac := alfred.MAC{0x00, 0x1a, 0x2b, 0x3c, 0x4d, 0x5e}
	ip := deriveEUI64(mac)

	got, ok := r.ResolveMAC(nil, ip)
	if !ok || got != mac {
		t.Fatalf("expected EUI-64 derivation to resolve %v, got %v ok=%v", mac, got, ok)
	}
}

func TestResolveMACFallsBackToStaticMapping(t *testing.T) {
	r := NewResolver()
	ip := net.ParseIP("192.0.2.10")
	hw := net.HardwareAddr{0x02, 0x11, 0x22, 0x33, 0x44, 0x55}

	if _, ok := r.ResolveMAC(nil, ip); ok {
		t.Fatal("expected no resolution before Set")
	}
	if err := r.Set(ip, hw); err != nil {
		t.Fatalf("unexpected error from Set: %v", err)
	}

	got, ok := r.ResolveMAC(nil, ip)
	if !ok {
		t.Fatal("expected static mapping to resolve")
	}
	want, _ := alfred.MACFromHardwareAddr(hw)
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSetRejectsWrongLengthHardwareAddr(t *testing.T) {
	r := NewResolver()
	if err := r.Set(net.ParseIP("192.0.2.10"), net.HardwareAddr{0x01, 0x02}); err == nil {
		t.Fatal("expected an error for a hardware address shorter than 6 bytes")
	}
}

func TestForgetRemovesStaticMapping(t *testing.T) {
	r := NewResolver()
	ip := net.ParseIP("192.0.2.10")
	hw := net.HardwareAddr{0x02, 0x11, 0x22, 0x33, 0x44, 0x55}
	if err := r.Set(ip, hw); err != nil {
		t.Fatalf("unexpected error from Set: %v", err)
	}

	r.Forget(ip)

	if _, ok := r.ResolveMAC(nil, ip); ok {
		t.Fatal("expected no resolution after Forget")
	}
}

// deriveEUI64 builds the link-local IPv6 address an EUI-64-derived
// interface identifier would produce for mac, the inverse of
// alfred.EUI64ToMAC, so tests can exercise ResolveMAC's primary path
// without a real interface.
func deriveEUI64(mac alfred.MAC) net.IP {
	ip := make(net.IP, net.IPv6len)
	ip[0] = 0xfe
	ip[1] = 0x80
	ip[8] = mac[0] ^ 0x02
	ip[9] = mac[1]
	ip[10] = mac[2]
	ip[11] = 0xff
	ip[12] = 0xfe
	ip[13] = mac[3]
	ip[14] = mac[4]
	ip[15] = mac[5]
	return ip
}
