package enhance

import "strings"

const fence = "```"

// ParseResponse extracts the fenced html and css blocks from a model answer.
// The css block is optional. Language tags match case-insensitively and the
// first block of each language wins.
func ParseResponse(text string) (Output, error) {
	html, ok := fencedBlock(text, "html")
	if !ok || strings.TrimSpace(html) == "" {
		return Output{}, ErrMissingHTMLBlock
	}
	css, _ := fencedBlock(text, "css")
	return Output{
		HTML: strings.TrimSpace(html),
		CSS:  strings.TrimSpace(css),
	}, nil
}

// fencedBlock returns the body of the first block tagged lang.
// A block that is opened but never closed runs to the end of the text.
func fencedBlock(text, lang string) (string, bool) {
	from := 0
	for from < len(text) {
		idx := strings.Index(text[from:], fence)
		if idx < 0 {
			return "", false
		}
		start := from + idx + len(fence)

		rest := text[start:]
		nl := strings.IndexByte(rest, '\n')
		if nl < 0 {
			return "", false
		}
		tag := strings.TrimSpace(rest[:nl])
		body := rest[nl+1:]
		end := strings.Index(body, fence)

		if strings.EqualFold(tag, lang) {
			if end >= 0 {
				body = body[:end]
			}
			return body, true
		}
		if end < 0 {
			return "", false
		}
		from = start + nl + 1 + end + len(fence)
	}
	return "", false
}
