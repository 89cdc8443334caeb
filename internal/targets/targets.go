// Package targets normalizes raw target input (freeform text, URLs, bare
// hostnames) into a deduplicated list of absolute URLs.
package targets

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// DefaultScheme is prefixed onto entries that carry no scheme of their own.
const DefaultScheme = "https"

// Parse splits delimited freeform text on newlines and commas, trims each
// entry, drops empties, deduplicates, and keeps an entry only if it
// normalizes to a syntactically valid absolute URL. The accepted list
// preserves first-occurrence order. Rejected entries are returned so callers
// can surface them; the coordination layer only logs them.
func Parse(raw string) (accepted, rejected []string) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	})
	return ParseList(fields)
}

// ParseList applies the same normalization and dedup rules to an explicit
// entry slice.
func ParseList(entries []string) (accepted, rejected []string) {
	seen := make(map[string]struct{})
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		normalized, err := Normalize(entry)
		if err != nil {
			rejected = append(rejected, entry)
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		accepted = append(accepted, normalized)
	}
	return accepted, rejected
}

// Normalize turns one raw entry into an absolute URL. Entries without a
// scheme get DefaultScheme prefixed before validation.
func Normalize(entry string) (string, error) {
	candidate := entry
	if !strings.Contains(candidate, "://") {
		candidate = DefaultScheme + "://" + candidate
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return "", fmt.Errorf("parse target %q: %w", entry, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("target %q: unsupported scheme %q", entry, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("target %q: missing host", entry)
	}
	if net.ParseIP(host) == nil {
		if _, err := idna.Lookup.ToASCII(host); err != nil {
			return "", fmt.Errorf("target %q: invalid host: %w", entry, err)
		}
	}
	return u.String(), nil
}

// Host extracts the hostname of an already-normalized target URL.
func Host(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse target %q: %w", target, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("target %q: missing host", target)
	}
	return u.Hostname(), nil
}
