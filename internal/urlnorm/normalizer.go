// Package urlnorm canonicalizes discovered links and decides whether they are
// in scope for a crawl session. It also owns the static language and category
// tables used to classify pages.
package urlnorm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// deniedExtensions lists non-document suffixes that never enter the frontier.
var deniedExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".ico",
	".zip", ".tar", ".gz", ".mp4", ".mp3", ".avi", ".mov",
	".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".css", ".js", ".xml", ".json",
}

// Normalizer canonicalizes links relative to a fixed base authority.
type Normalizer struct {
	authority string
}

// New builds a Normalizer scoped to the authority (host[:port]) of baseURL.
func New(baseURL string) (*Normalizer, error) {
	u, err := parseAbsolute(baseURL)
	if err != nil {
		return nil, err
	}
	return &Normalizer{authority: u.Host}, nil
}

// Authority returns the host[:port] the normalizer is scoped to.
func (n *Normalizer) Authority() string {
	return n.authority
}

// Normalize resolves raw against pageURL and returns its canonical form. The
// boolean is false when the link is out of scope, uses a non-web scheme, or
// points at a denied extension.
func (n *Normalizer) Normalize(raw, pageURL string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	page, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	abs := page.ResolveReference(ref)
	if !isWebScheme(abs.Scheme) || abs.Host != n.authority {
		return "", false
	}
	// The extension check runs on the trimmed path so /file.pdf/ is denied
	// the same as /file.pdf.
	if DeniedExtension(trimPath(abs.Path)) {
		return "", false
	}
	return canonicalize(abs), true
}

// DeniedExtension reports whether the path ends in a non-document extension.
// The comparison is case-insensitive.
func DeniedExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range deniedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Canonical canonicalizes an absolute http(s) URL without scope checks. It is
// used for the seed, which is admitted unconditionally.
func Canonical(raw string) (string, error) {
	u, err := parseAbsolute(raw)
	if err != nil {
		return "", err
	}
	return canonicalize(u), nil
}

// Host returns the authority of an absolute URL, or "" if it cannot be parsed.
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

func parseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if !isWebScheme(u.Scheme) {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("url has no host")
	}
	return u, nil
}

func isWebScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}

// canonicalize renders scheme://authority/path[?query]. Trailing slashes are
// trimmed except for the root path; fragments are dropped.
func canonicalize(u *url.URL) string {
	path := trimPath(u.EscapedPath())
	var b strings.Builder
	b.WriteString(strings.ToLower(u.Scheme))
	b.WriteString("://")
	b.WriteString(u.Host)
	b.WriteString(path)
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	return b.String()
}

func trimPath(path string) string {
	path = strings.TrimRight(path, "/")
	if path == "" {
		return "/"
	}
	return path
}
