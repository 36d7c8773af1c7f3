package alfred

import "net"

// IsEUI64LinkLocal reports whether ip is an IPv6 link-local address whose
// interface identifier was derived from a hardware address using the
// EUI-64 scheme (the ff:fe bytes at offset 11-12 of the 16-byte form).
// Every inbound IPv6 sender must pass this check; it does not apply to
// IPv4 senders.
func IsEUI64LinkLocal(ip net.IP) bool {
	ip16 := ip.To16()
	if ip16 == nil || ip.To4() != nil {
		return false
	}
	if !ip16.IsLinkLocalUnicast() {
		return false
	}
	return ip16[11] == 0xff && ip16[12] == 0xfe
}

// EUI64ToMAC recovers the original 6-byte hardware address from an
// EUI-64-derived link-local address's interface identifier, flipping the
// universal/local bit back.
func EUI64ToMAC(ip net.IP) (MAC, bool) {
	if !IsEUI64LinkLocal(ip) {
		return MAC{}, false
	}
	ip16 := ip.To16()
	var mac MAC
	mac[0] = ip16[8] ^ 0x02
	mac[1] = ip16[9]
	mac[2] = ip16[10]
	mac[3] = ip16[13]
	mac[4] = ip16[14]
	mac[5] = ip16[15]
	return mac, true
}
