package fetch

import "errors"

var (
	// ErrHTTPStatus is returned when the seed page answers with status 400 or above.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrBodyTooLarge is returned when the seed page exceeds the body size limit.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")
)
