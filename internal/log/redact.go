package log

import (
	"net/url"
	"strings"
)

// sensitiveParams are query parameter names whose values are masked in URLs.
var sensitiveParams = []string{ //nolint:gochecknoglobals // lookup table
	"token", "key", "apikey", "api_key", "secret", "password", "sig", "signature", "auth", "session",
}

// RedactURL masks the userinfo password and credential-like query
// parameters of an absolute URL. The second result reports whether anything
// was masked; non-URL strings are returned unchanged.
func RedactURL(raw string) (string, bool) {
	if !strings.Contains(raw, "://") {
		return raw, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw, false
	}

	changed := false
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), MaskValue)
			changed = true
		}
	}

	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if isSensitiveParam(name) {
				q.Set(name, MaskValue)
				changed = true
			}
		}
		if changed {
			u.RawQuery = q.Encode()
		}
	}

	if !changed {
		return raw, false
	}
	return unescapeMask(u.String()), true
}

func isSensitiveParam(name string) bool {
	name = strings.ToLower(name)
	for _, p := range sensitiveParams {
		if name == p || strings.HasSuffix(name, "_"+p) || strings.HasPrefix(name, p+"_") {
			return true
		}
	}
	return false
}

// unescapeMask restores the mask text that URL encoding escaped.
func unescapeMask(s string) string {
	return strings.ReplaceAll(s, url.QueryEscape(MaskValue), MaskValue)
}
