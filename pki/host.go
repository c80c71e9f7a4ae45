package pki

import (
	"net"
	"os"
)

// HostInfo carries the identity the server certificate is bound to. The
// subject-alternative-name set always includes "<hostname>",
// "<hostname>.local", "localhost", the loopback address, and the primary IP
// when one can be determined.
type HostInfo struct {
	Hostname  string
	PrimaryIP net.IP
}

// DetectHost builds a HostInfo from the local machine.
func DetectHost() HostInfo {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "localhost"
	}
	return HostInfo{Hostname: hostname, PrimaryIP: primaryIP()}
}

// primaryIP returns the first global unicast IPv4 address on any interface,
// or nil when none exists (loopback-only hosts).
func primaryIP() net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipnet.IP
		if ip.IsLoopback() || ip.To4() == nil {
			continue
		}
		if ip.IsGlobalUnicast() || ip.IsPrivate() {
			return ip.To4()
		}
	}
	return nil
}

// dnsNames returns the DNS SAN entries for the server identity.
func (h HostInfo) dnsNames() []string {
	names := []string{"localhost"}
	if h.Hostname != "" && h.Hostname != "localhost" {
		names = append([]string{h.Hostname, h.Hostname + ".local"}, names...)
	}
	return names
}

// ipAddresses returns the IP SAN entries for the server identity.
func (h HostInfo) ipAddresses() []net.IP {
	ips := []net.IP{net.IPv4(127, 0, 0, 1)}
	if h.PrimaryIP != nil && !h.PrimaryIP.IsLoopback() {
		ips = append([]net.IP{h.PrimaryIP}, ips...)
	}
	return ips
}
