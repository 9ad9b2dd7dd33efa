// Package hostutil normalizes hosts typed on the command line into URLs.
package hostutil

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Normalize turns a bare host into a URL. Loopback hosts get http://,
// everything else https://. Values that already carry a scheme are returned
// unchanged, as is the empty string.
func Normalize(host string) string {
	switch {
	case host == "":
		return ""
	case strings.Contains(host, "://"):
		return host
	case IsLocalhost(host):
		return "http://" + host
	default:
		return "https://" + host
	}
}

// IsLocalhost reports whether host (optionally with a port) names the local
// machine: localhost, any *.localhost name, 127.0.0.1 or a bracketed [::1].
func IsLocalhost(host string) bool {
	name, bracketed := hostname(host)
	switch {
	case name == "localhost", strings.HasSuffix(name, ".localhost"):
		return true
	case name == "127.0.0.1":
		return true
	case name == "::1":
		return bracketed
	}
	return false
}

// RequireSecureURL rejects plain http URLs unless they point at localhost.
// Token endpoints are checked with it before credentials are sent.
func RequireSecureURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme == "http" && !IsLocalhost(u.Host) {
		return fmt.Errorf("insecure http:// url not allowed: %s", raw)
	}
	return nil
}

func hostname(hostport string) (string, bool) {
	bracketed := strings.HasPrefix(hostport, "[")
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h, bracketed
	}
	if bracketed && strings.HasSuffix(hostport, "]") {
		return hostport[1 : len(hostport)-1], true
	}
	return hostport, false
}
