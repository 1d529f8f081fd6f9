// Package fetch retrieves the seed page of a clone job.
//
// A Session is the one *http.Client a job uses for every request: it keeps
// cookies in a jar, follows up to ten redirects and adds the site's
// configured User-Agent, cookie and headers to each request. HTTPFetcher
// downloads the seed page through it and decodes the body to UTF-8;
// BrowserFetcher loads it in headless Chrome instead, so that markup built
// by scripts is part of the clone.
package fetch
