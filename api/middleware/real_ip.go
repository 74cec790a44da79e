package middleware

import (
	"net"
	"net/http"
	"strings"
)

// RealIP replaces r.RemoteAddr with the client address recorded by the
// trusted proxies in front of the API. trustedHops is the number of proxies
// that append to X-Forwarded-For; entries left of those are client supplied
// and ignored. With zero hops the header is never read.
func RealIP(trustedHops int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if trustedHops <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := forwardedClient(r.Header.Values("X-Forwarded-For"), trustedHops); ip != "" {
				r.RemoteAddr = ip
			}
			next.ServeHTTP(w, r)
		})
	}
}

// forwardedClient returns the entry added by the outermost trusted proxy.
func forwardedClient(headers []string, trustedHops int) string {
	var hops []string
	for _, header := range headers {
		for _, part := range strings.Split(header, ",") {
			if part = strings.TrimSpace(part); part != "" {
				hops = append(hops, part)
			}
		}
	}
	if len(hops) < trustedHops {
		return ""
	}
	candidate := hops[len(hops)-trustedHops]
	if net.ParseIP(candidate) == nil {
		return ""
	}
	return candidate
}
