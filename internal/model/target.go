package model

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/crypto/sha3"
	"golang.org/x/net/idna"
)

// ErrInvalidTargetURL is returned when a target address cannot be normalized
// into an absolute http(s) URL.
var ErrInvalidTargetURL = errors.New("invalid target url")

// Target is one candidate address being tested for prior-visit status.
// Targets are created when a target list is built and never mutated; results
// are attached next to them in TargetState.
type Target struct {
	// ID is a stable identifier. Derived from the normalized URL when the
	// source list does not provide one.
	ID string `json:"id"`

	// URL is the absolute address that probes reference.
	URL string `json:"url"`

	// Name is the display name.
	Name string `json:"name"`

	// Category groups targets in reports ("social", "news", ...).
	Category string `json:"category,omitempty"`
}

// NewTarget builds a Target from a raw address. The URL is normalized with
// NormalizeURL and the ID derived with TargetID when id is empty.
func NewTarget(id, rawURL, name, category string) (Target, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return Target{}, err
	}
	if id == "" {
		id = TargetID(normalized)
	}
	if name == "" {
		name = hostOf(normalized)
	}
	return Target{
		ID:       id,
		URL:      normalized,
		Name:     name,
		Category: category,
	}, nil
}

// NormalizeURL turns user input into an absolute URL.
// Addresses without a scheme get "https://", hosts are lowercased and
// converted to their ASCII (punycode) form so the same site entered two ways
// produces the same link.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidTargetURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Join(ErrInvalidTargetURL, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTargetURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", ErrInvalidTargetURL
	}

	host, err := normalizeHost(u.Hostname())
	if err != nil {
		return "", err
	}
	switch port := u.Port(); {
	case port != "":
		u.Host = net.JoinHostPort(host, port)
	case strings.Contains(host, ":"):
		u.Host = "[" + host + "]"
	default:
		u.Host = host
	}
	u.Fragment = ""

	return u.String(), nil
}

// normalizeHost returns the canonical form of an IP literal, or the ASCII
// form of a domain name.
func normalizeHost(hostname string) (string, error) {
	if ip := net.ParseIP(hostname); ip != nil {
		return ip.String(), nil
	}
	host, err := idna.Lookup.ToASCII(strings.ToLower(hostname))
	if err != nil {
		return "", errors.Join(ErrInvalidTargetURL, err)
	}
	return host, nil
}

// TargetID derives a short, stable identifier from a normalized URL.
func TargetID(normalizedURL string) string {
	sum := sha3.Sum256([]byte(normalizedURL))
	return hex.EncodeToString(sum[:6])
}

// Origin returns scheme://host[:port] of the target URL.
func (t Target) Origin() string {
	u, err := url.Parse(t.URL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
