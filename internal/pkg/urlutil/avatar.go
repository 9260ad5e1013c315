package urlutil

import (
	"net/url"
	"strings"
)

// NormalizeAvatarURL returns the avatar reference as a clean absolute
// http(s) URL, or "" when the provider supplied something unusable.
func NormalizeAvatarURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}
