package fetch

import "strings"

// Proxy rewrites outbound feed URLs through a forward proxy, e.g. a
// CloudFlare worker that relays requests to hosts blocked from the
// local network. A Proxy with an empty base is disabled and rewrites
// nothing.
type Proxy struct {
	base string
}

// NewProxy creates a Proxy for the given base URL. A trailing slash on
// the base is trimmed.
func NewProxy(base string) *Proxy {
	return &Proxy{base: strings.TrimRight(base, "/")}
}

// Enabled reports whether a proxy base is configured.
func (p *Proxy) Enabled() bool {
	return p != nil && p.base != ""
}

// Rewrite returns the proxied form of target: the target's scheme is
// stripped and the host-and-path appended to the proxy base. When the
// proxy is disabled the target is returned unchanged.
func (p *Proxy) Rewrite(target string) string {
	if !p.Enabled() {
		return target
	}
	target = strings.TrimPrefix(target, "http://")
	target = strings.TrimPrefix(target, "https://")
	return p.base + "/" + target
}
