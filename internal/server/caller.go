package server

import (
	"net"
	"net/http"
	"strings"
)

// Headers the automation platform stamps on every webhook call. Presence of
// either is accepted as proof of origin alongside the user-agent check.
var scenarioHeaders = []string{
	"X-Make-Scenario-Id",
	"X-Integromat-Scenario-Id",
}

// authenticCaller reports whether the request looks like it came from the
// automation platform rather than an arbitrary HTTP client.
func authenticCaller(userAgent string, h http.Header) bool {
	if strings.Contains(userAgent, "Make") || strings.Contains(userAgent, "Integromat") {
		return true
	}
	for _, name := range scenarioHeaders {
		if h.Get(name) != "" {
			return true
		}
	}
	return false
}

// remoteHost strips the port from an addr like "203.0.113.9:54120". The
// host alone feeds the caller hash so the same origin hashes stably.
func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
