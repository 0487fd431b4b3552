package utils

import (
	"net/url"
	"regexp"
	"strings"
)

var wwwPrefix = regexp.MustCompile(`^(https?://)www\.`)

// NormalizeURL lowercases, adds protocol if missing, removes www. and trailing slash.
func NormalizeURL(u string) string {
	if u == "" {
		return ""
	}
	n := strings.ToLower(strings.TrimSpace(u))
	if !strings.HasPrefix(n, "http://") && !strings.HasPrefix(n, "https://") {
		n = "https://" + n
	}
	n = wwwPrefix.ReplaceAllString(n, "$1")
	return strings.TrimSuffix(n, "/")
}

// ExtractDomain returns just the host portion of a URL-like string.
func ExtractDomain(u string) string {
	parsed, err := url.Parse(NormalizeURL(u))
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

// IsValidWebsite reports whether u looks like a reachable http(s) site with a dotted host.
func IsValidWebsite(u string) bool {
	if strings.TrimSpace(u) == "" {
		return false
	}
	host := ExtractDomain(u)
	return host != "" && strings.Contains(host, ".") && !strings.ContainsAny(host, " _")
}
