package auth

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// LoopbackPlaceholder is reported when neither a forwarded-for header nor a
// socket peer address is available.
const LoopbackPlaceholder = "127.0.0.1"

// ClientIP resolves the caller address used in security logs.
//
// The first X-Forwarded-For entry wins, then the socket peer, then
// LoopbackPlaceholder. The header is client-controlled: unless the service
// sits behind a proxy that overwrites it, callers can spoof the logged
// address. Passing trusted narrows this so the header is only honored when
// the socket peer falls inside one of the trusted prefixes.
func ClientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := peerHost(r.RemoteAddr)

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" && peerTrusted(peer, trusted) {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if peer != "" {
		return peer
	}
	return LoopbackPlaceholder
}

// ParseTrustedProxies parses CIDRs and bare addresses into prefixes.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func peerHost(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	if remoteAddr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

func peerTrusted(peer string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return true
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
