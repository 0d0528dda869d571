package parse

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Sriram-PR/site-mapper/pkg/utils"
)

// RootNodeID is the identity of a URL whose path is empty
const RootNodeID = "/"

// NodeID maps a raw URL to its graph node identity: the escaped path, or "/" when the path is empty
// It never fails. Input that does not parse is returned unchanged, and "//x" inputs (no scheme, host present) are returned unchanged so an already-normalized path beginning with "//" maps to itself
// NodeID(NodeID(u)) == NodeID(u) for every u
func NodeID(raw string) string {
	if raw == "" {
		return RootNodeID
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Scheme == "" && u.Host != "" {
		return raw
	}
	if p := u.EscapedPath(); p != "" {
		return p
	}
	return RootNodeID
}

// ParseSeed validates a crawl seed: absolute, http or https, with a host
func ParseSeed(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: seed URL is empty", utils.ErrConfigValidation)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: URL '%s': %w", utils.ErrParsing, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: seed URL '%s' must use http or https", utils.ErrConfigValidation, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: seed URL '%s' has no host", utils.ErrConfigValidation, raw)
	}
	return u, nil
}

// SameDomain reports whether u is an http(s) URL on the given domain (host[:port], case-insensitive)
func SameDomain(u *url.URL, domain string) bool {
	if u == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return strings.EqualFold(u.Host, domain)
}
