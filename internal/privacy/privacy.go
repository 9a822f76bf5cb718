// Package privacy scrubs credentials and host details from text before it
// leaves the process in telemetry events.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// URLs in free text, including database URLs
	urlPattern = regexp.MustCompile(`\b(?:https?|postgres(?:ql)?)://\S+`)

	// key=value credentials, as in libpq DSNs
	credentialPattern = regexp.MustCompile(`(?i)\b(password|passwd|pwd|token|api[_-]?key|secret)=\S+`)

	ipv4Pattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
)

// publicHosts are kept verbatim; anything else is reduced to a category.
var publicHosts = map[string]bool{
	"boardgamegeek.com":     true,
	"www.boardgamegeek.com": true,
	"cf.geekdo-images.com":  true,
}

// ScrubMessage anonymizes URLs and redacts credentials in message.
func ScrubMessage(message string) string {
	message = urlPattern.ReplaceAllStringFunc(message, AnonymizeURL)
	return credentialPattern.ReplaceAllString(message, "$1=[REDACTED]")
}

// AnonymizeURL drops credentials and the query string from rawURL. Catalog
// and image CDN hosts stay readable; other hosts and their paths become a
// stable hash so repeated failures still group together.
func AnonymizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		hash := sha256.Sum256([]byte(rawURL))
		return fmt.Sprintf("url-hash-%x", hash[:8])
	}

	host := strings.ToLower(u.Hostname())
	if publicHosts[host] {
		return u.Scheme + "://" + host + u.EscapedPath()
	}

	parts := []string{u.Scheme, categorizeHost(host)}
	if port := u.Port(); port != "" {
		parts = append(parts, "port-"+port)
	}
	if p := strings.Trim(u.Path, "/"); p != "" {
		parts = append(parts, p)
	}
	hash := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("%s://%s/url-%x", u.Scheme, categorizeHost(host), hash[:8])
}

func categorizeHost(host string) string {
	switch {
	case host == "localhost" || host == "127.0.0.1" || host == "::1":
		return "localhost"
	case isPrivateIP(host):
		return "private-ip"
	case ipv4Pattern.MatchString(host) || strings.Contains(host, ":"):
		return "public-ip"
	}
	if i := strings.LastIndexByte(host, '.'); i >= 0 && i < len(host)-1 {
		return "domain-" + host[i+1:]
	}
	return "unknown-host"
}

func isPrivateIP(host string) bool {
	for _, prefix := range []string{
		"10.", "192.168.", "169.254.",
		"fc00:", "fd00:", "fe80:",
	} {
		if strings.HasPrefix(host, prefix) {
			return true
		}
	}
	// 172.16.0.0/12
	var second int
	if _, err := fmt.Sscanf(host, "172.%d.", &second); err == nil {
		return second >= 16 && second <= 31
	}
	return false
}
