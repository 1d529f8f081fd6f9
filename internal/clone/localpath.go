package clone

import (
	"net/url"
	"strings"
)

// URLToLocalPath maps an absolute URL to a path relative to the site folder.
//
// The result is the URL's path with a single leading "/" or "\" removed.
// With keepQuery the path stays percent-encoded and the raw query is
// appended as "?query", which is what the rewritten attribute carries.
// On-disk paths are decoded and computed without the query so that
// references differing only by query share one file.
//
// The second return value is false when the URL cannot be parsed or the
// resulting path is empty.
func URLToLocalPath(rawURL string, keepQuery bool) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	local := u.Path
	if keepQuery {
		local = u.EscapedPath()
		if u.RawQuery != "" {
			local += "?" + u.RawQuery
		}
	}
	if strings.HasPrefix(local, "/") || strings.HasPrefix(local, `\`) {
		local = local[1:]
	}
	if local == "" {
		return "", false
	}
	return local, true
}

// StripQuery removes the query and fragment from rawURL.
// Unparsable input is cut at the first "?" or "#".
func StripQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
