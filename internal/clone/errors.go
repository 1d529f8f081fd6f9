package clone

import "errors"

var (
	// ErrUnmappableURL is returned when a URL has no usable local path.
	ErrUnmappableURL = errors.New("url cannot be mapped to a local path")

	// ErrEmptyFileName is returned for URLs whose path ends in a separator.
	ErrEmptyFileName = errors.New("url path has no file name")

	// ErrPathEscapesSite is returned when a local path would leave the site folder.
	ErrPathEscapesSite = errors.New("local path escapes the site folder")

	// ErrHTTPStatus is returned when an asset responds with a status of 400 or above.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrBodyTooLarge is returned when an asset body exceeds the size limit.
	ErrBodyTooLarge = errors.New("asset body exceeds size limit")

	// ErrNoDocument is returned when a step needs a parsed document and there is none.
	ErrNoDocument = errors.New("no parsed document")
)
