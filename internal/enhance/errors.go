package enhance

import "errors"

var (
	// ErrMissingAPIKey is returned when the client has no API key.
	ErrMissingAPIKey = errors.New("enhancement API key is not set")

	// ErrAPIStatus is returned when the model server answers with a non-200 status.
	ErrAPIStatus = errors.New("enhancement API returned an error status")

	// ErrEmptyResponse is returned when the model returns no choices or no text.
	ErrEmptyResponse = errors.New("enhancement API returned an empty response")

	// ErrMissingHTMLBlock is returned when the response has no fenced html block.
	ErrMissingHTMLBlock = errors.New("response contains no html code block")
)
