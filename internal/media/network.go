package media

import (
	"net"
	"net/netip"
	"strings"
)

// cgnat covers carrier-grade NAT as well as overlay networks such as
// Tailscale and Cloudflare WARP.
var cgnat = netip.MustParsePrefix("100.64.0.0/10")

// tunnelHints are interface name fragments used by VPN and virtual adapters.
var tunnelHints = []string{"tun", "tap", "wg", "ppp", "warp"}

// behindTunnel reports whether an active interface looks like a VPN or sits
// in the CGNAT range. Direct paths rarely work there, so relay is preferred
// when a TURN server is available.
func behindTunnel() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if tunnelInterface(iface) {
			return true
		}
	}
	return false
}

func tunnelInterface(iface net.Interface) bool {
	if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
		return false
	}
	if tunnelName(iface.Name) {
		return true
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return false
	}
	for _, addr := range addrs {
		if inCGNAT(addr) {
			return true
		}
	}
	return false
}

func tunnelName(name string) bool {
	name = strings.ToLower(name)
	for _, hint := range tunnelHints {
		if strings.Contains(name, hint) {
			return true
		}
	}
	return false
}

func inCGNAT(addr net.Addr) bool {
	var ip net.IP
	switch v := addr.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	default:
		return false
	}
	a, ok := netip.AddrFromSlice(ip)
	return ok && cgnat.Contains(a.Unmap())
}
