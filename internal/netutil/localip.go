package netutil

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"sync"

	gopsnet "github.com/shirou/gopsutil/v4/net"
)

// Unavailable is reported when no suitable interface carries an IPv4 address.
const Unavailable = "N/A"

var (
	cacheOnce sync.Once
	cachedIP  string
)

// LocalIP returns the host's primary IPv4 address, preferring a wireless
// interface over a wired one and skipping loopback, virtual and VPN-labeled
// interfaces. The result is resolved once and cached for the process
// lifetime.
func LocalIP(ctx context.Context) string {
	cacheOnce.Do(func() {
		ifaces, err := gopsnet.InterfacesWithContext(ctx)
		if err != nil {
			slog.Warn("Cannot enumerate network interfaces", "error", err)
			cachedIP = Unavailable
			return
		}
		cachedIP = pickLocalIP(ifaces)
	})
	return cachedIP
}

// pickLocalIP applies the interface preference rules to an interface list.
func pickLocalIP(ifaces gopsnet.InterfaceStatList) string {
	var wired string
	for _, iface := range ifaces {
		if !isUp(iface) || isExcluded(iface.Name) {
			continue
		}
		ip := firstIPv4(iface)
		if ip == "" {
			continue
		}
		if isWireless(iface.Name) {
			return ip
		}
		if wired == "" {
			wired = ip
		}
	}
	if wired != "" {
		return wired
	}
	return Unavailable
}

func isUp(iface gopsnet.InterfaceStat) bool {
	up := false
	for _, f := range iface.Flags {
		switch f {
		case "up":
			up = true
		case "loopback":
			return false
		}
	}
	return up
}

// Name fragments marking virtual, tunnel or VPN interfaces that must never
// label an event.
var excludedFragments = []string{
	"veth", "docker", "br-", "vbox", "vmnet", "vethernet", "virtual",
	"tun", "tap", "wg", "zt", "vpn", "lo",
}

func isExcluded(name string) bool {
	n := strings.ToLower(name)
	for _, frag := range excludedFragments {
		if strings.HasPrefix(n, frag) {
			return true
		}
	}
	return strings.Contains(n, "virtual") || strings.Contains(n, "vpn")
}

var wirelessFragments = []string{"wlan", "wlp", "wlo", "wifi", "wi-fi", "wireless", "ath"}

func isWireless(name string) bool {
	n := strings.ToLower(name)
	for _, frag := range wirelessFragments {
		if strings.Contains(n, frag) {
			return true
		}
	}
	return false
}

func firstIPv4(iface gopsnet.InterfaceStat) string {
	for _, addr := range iface.Addrs {
		s := addr.Addr
		if i := strings.IndexByte(s, '/'); i >= 0 {
			s = s[:i]
		}
		ip := net.ParseIP(s)
		if ip == nil || ip.To4() == nil || !ip.IsGlobalUnicast() {
			continue
		}
		return ip.String()
	}
	return ""
}
