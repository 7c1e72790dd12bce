// Package magnet extracts info hashes from magnet links and encodes the opaque
// selection tokens handed to callers.
package magnet

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidMagnet is returned when no 40-hex info hash can be found.
var ErrInvalidMagnet = errors.New("invalid magnet: no info hash")

var (
	btihPattern     = regexp.MustCompile(`(?i)btih:([a-f0-9]{40})`)
	bareHashPattern = regexp.MustCompile(`(?i)^[a-f0-9]{40}$`)
	servicePattern  = regexp.MustCompile(`(?i)&service=([^&]*)`)
)

// ExtractInfoHash returns the lowercase info hash from a magnet link or a bare hash.
func ExtractInfoHash(link string) (string, error) {
	link = strings.TrimSpace(link)
	if bareHashPattern.MatchString(link) {
		return strings.ToLower(link), nil
	}
	m := btihPattern.FindStringSubmatch(link)
	if m == nil {
		return "", ErrInvalidMagnet
	}
	return strings.ToLower(m[1]), nil
}

// IsInfoHash reports whether s is a 40-hex info hash.
func IsInfoHash(s string) bool {
	return bareHashPattern.MatchString(strings.TrimSpace(s))
}

// PreferredService returns the provider tag embedded with &service=, if any.
func PreferredService(link string) string {
	m := servicePattern.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	tag, err := url.QueryUnescape(m[1])
	if err != nil {
		tag = m[1]
	}
	return strings.ToLower(strings.TrimSpace(tag))
}

// StripService removes every &service= parameter from the link.
func StripService(link string) string {
	return servicePattern.ReplaceAllString(link, "")
}

// Build returns a minimal magnet link for hash, optionally naming the display title
// and the preferred provider.
func Build(hash, displayName, service string) string {
	var b strings.Builder
	b.WriteString("magnet:?xt=urn:btih:")
	b.WriteString(strings.ToLower(hash))
	if displayName != "" {
		b.WriteString("&dn=")
		b.WriteString(url.QueryEscape(displayName))
	}
	if service != "" {
		b.WriteString("&service=")
		b.WriteString(url.QueryEscape(service))
	}
	return b.String()
}

// DisplayName returns the decoded dn= parameter of a magnet link.
func DisplayName(link string) string {
	idx := strings.Index(link, "?")
	if idx < 0 {
		return ""
	}
	// ParseQuery keeps the pairs it managed to decode, so the error is ignored.
	values, _ := url.ParseQuery(link[idx+1:])
	return strings.TrimSpace(values.Get("dn"))
}

// EncodeToken wraps a magnet link into the URL-safe selection token handed to callers.
func EncodeToken(link string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(link))
}

// DecodeToken reverses EncodeToken. Standard padded base64 is also accepted.
func DecodeToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding, base64.StdEncoding, base64.RawStdEncoding} {
		if raw, err := enc.DecodeString(token); err == nil {
			return string(raw), nil
		}
	}
	return "", fmt.Errorf("decode selection token: %w", ErrInvalidMagnet)
}

// Normalize accepts a bare hash, a magnet link or a selection token and returns
// the magnet link, the info hash and the preferred provider tag. The service
// parameter is stripped from the returned link.
func Normalize(input string) (link, hash, service string, err error) {
	input = strings.TrimSpace(input)
	switch {
	case input == "":
		return "", "", "", ErrInvalidMagnet
	case IsInfoHash(input):
		hash = strings.ToLower(input)
		return Build(hash, "", ""), hash, "", nil
	case strings.HasPrefix(strings.ToLower(input), "magnet:"):
		link = input
	default:
		decoded, decErr := DecodeToken(input)
		if decErr != nil {
			return "", "", "", decErr
		}
		if IsInfoHash(decoded) {
			decoded = Build(decoded, "", "")
		}
		link = decoded
	}
	service = PreferredService(link)
	link = StripService(link)
	hash, err = ExtractInfoHash(link)
	if err != nil {
		return "", "", "", err
	}
	return link, hash, service, nil
}
