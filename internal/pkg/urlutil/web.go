package urlutil

import (
	"net/url"
	"strings"
)

// LoginURL builds the login page path carrying a reason for the redirect.
// Returns a path like: /login?reason={reason}
func LoginURL(reason string) string {
	if reason == "" {
		return "/login"
	}
	q := url.Values{}
	q.Set("reason", reason)
	return "/login?" + q.Encode()
}

// SafeRedirectPath returns target if it is a local absolute path, otherwise "/".
// Anything that could leave the site (scheme, host, protocol-relative or
// backslash tricks) is rejected.
func SafeRedirectPath(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") {
		return "/"
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") || strings.ContainsAny(target, "\r\n") {
		return "/"
	}

	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return target
}
