// Package config provides configuration structures and utilities for webclone.
// It defines the options for cloning seed pages, routing requests through Tor,
// optional enhancement, history storage and report output, together with the
// per-site settings read from the .webclone file.
package config
