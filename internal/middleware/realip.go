package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/parallelhq/parallel/internal/ctxkeys"
)

// RealIP resolves the client address once per request. X-Forwarded-For and
// X-Real-IP are only read when the direct peer is a trusted proxy, so clients
// cannot pick their own rate limit key.
func RealIP(trustedProxies []string) func(http.Handler) http.Handler {
	trusted := parseProxies(trustedProxies)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolveClientIP(r, trusted)
			next.ServeHTTP(w, r.WithContext(ctxkeys.WithClientIP(r.Context(), ip)))
		})
	}
}

type proxySet []netip.Prefix

func parseProxies(entries []string) proxySet {
	var out proxySet
	for _, e := range entries {
		if prefix, err := netip.ParsePrefix(e); err == nil {
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			slog.Warn("ignoring invalid trusted proxy", "entry", e)
			continue
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out
}

func (p proxySet) contains(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// resolveClientIP walks X-Forwarded-For from the right and returns the first
// hop that is not a trusted proxy.
func resolveClientIP(r *http.Request, trusted proxySet) string {
	peer := peerIP(r)
	if !trusted.contains(peer) {
		return peer
	}

	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(v, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}
	for i := len(hops) - 1; i >= 0; i-- {
		if _, err := netip.ParseAddr(hops[i]); err != nil {
			break
		}
		if !trusted.contains(hops[i]) {
			return hops[i]
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}
	return peer
}

func peerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
