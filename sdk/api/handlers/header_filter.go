package handlers

import (
	"net/http"
	"strings"
)

// hopByHopHeaders lists RFC 7230 Section 6.1 hop-by-hop headers that MUST NOT
// be forwarded by proxies, plus headers the relay computes itself.
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"Set-Cookie":          {},
	"Content-Length":      {},
	"Content-Encoding":    {},
	"Date":                {},
}

// FilterUpstreamHeaders returns a copy of src without hop-by-hop, connection-scoped
// and relay-managed headers. Returns nil if nothing is left.
func FilterUpstreamHeaders(src http.Header) http.Header {
	if len(src) == 0 {
		return nil
	}
	scoped := make(map[string]struct{})
	for _, rawValue := range src.Values("Connection") {
		for _, token := range strings.Split(rawValue, ",") {
			if name := strings.TrimSpace(token); name != "" {
				scoped[http.CanonicalHeaderKey(name)] = struct{}{}
			}
		}
	}

	dst := make(http.Header)
	for key, values := range src {
		canonicalKey := http.CanonicalHeaderKey(key)
		if _, blocked := hopByHopHeaders[canonicalKey]; blocked {
			continue
		}
		if _, ok := scoped[canonicalKey]; ok {
			continue
		}
		dst[canonicalKey] = append([]string(nil), values...)
	}
	if len(dst) == 0 {
		return nil
	}
	return dst
}

// WriteUpstreamHeaders copies the filtered upstream headers into dst.
// Headers the handler already set (e.g., Content-Type) are NOT overwritten.
func WriteUpstreamHeaders(dst http.Header, src http.Header) {
	for key, values := range FilterUpstreamHeaders(src) {
		if dst.Get(key) != "" {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}
