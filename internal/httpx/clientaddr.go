package httpx

import (
	"net"
	"net/http"
	"strings"
)

// ForwardedForHeader lists the client and proxy addresses, client first.
const ForwardedForHeader = "X-Forwarded-For"

// ClientAddr returns the client IP address of r without its port. When
// trustProxy is set, the first X-Forwarded-For entry wins over RemoteAddr.
// IPv6 zones are dropped.
func ClientAddr(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get(ForwardedForHeader); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if addr := stripPort(strings.TrimSpace(first)); addr != "" {
				return addr
			}
		}
	}
	return stripPort(r.RemoteAddr)
}

func stripPort(addr string) string {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if i := strings.IndexByte(host, '%'); i >= 0 {
		host = host[:i]
	}
	return host
}
