package mw

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/3xpluto/go-echo-server/internal/netx"
)

// IPResolver reports the client address of a request: X-Real-Ip, then
// X-Forwarded-For, then the peer address. With a non-empty Trusted set the
// forwarded headers only count when the peer is a trusted proxy.
type IPResolver struct {
	Trusted *netx.CIDRSet
}

func (r IPResolver) ClientIP(req *http.Request) string {
	if r.trustsPeer(req.RemoteAddr) {
		if v := req.Header.Get("X-Real-Ip"); v != "" {
			return v
		}
		if v := req.Header.Get("X-Forwarded-For"); v != "" {
			return v
		}
	}
	return req.RemoteAddr
}

func (r IPResolver) trustsPeer(remoteAddr string) bool {
	if r.Trusted.Empty() {
		return true
	}
	addr, ok := netx.PeerAddr(remoteAddr)
	return ok && r.Trusted.Contains(addr)
}

// RateKey identifies a client for rate limiting. Unlike ClientIP it never
// believes forwarded headers unless the peer is in a non-empty Trusted set,
// so callers cannot pick their own bucket.
func (r IPResolver) RateKey(req *http.Request) string {
	peer, ok := netx.PeerAddr(req.RemoteAddr)
	if !ok {
		return req.RemoteAddr
	}
	if r.Trusted.Empty() || !r.Trusted.Contains(peer) {
		return peer.String()
	}
	// left-most X-Forwarded-For entry is the original client
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if a, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return a.Unmap().String()
		}
	}
	if a, err := netip.ParseAddr(strings.TrimSpace(req.Header.Get("X-Real-Ip"))); err == nil {
		return a.Unmap().String()
	}
	return peer.String()
}
