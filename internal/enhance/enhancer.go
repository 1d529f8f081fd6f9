package enhance

import (
	"context"
	"unicode/utf8"
)

// SnippetLength is how many characters of the page and of the stylesheet
// are sent to the model.
const SnippetLength = 2000

// Input is what the model gets to see of a clone.
type Input struct {
	// URL is the seed URL of the clone.
	URL string

	// HTML is the rewritten page markup.
	HTML string

	// CSS is the first downloaded stylesheet, or empty when there is none.
	CSS string
}

// Output is the model's answer after parsing.
type Output struct {
	HTML string
	CSS  string
}

// Enhancer turns a finished clone into an improved version.
type Enhancer interface {
	Enhance(ctx context.Context, in Input) (Output, error)
}

// Func adapts a plain function to the Enhancer interface.
type Func func(ctx context.Context, in Input) (Output, error)

// Enhance calls f.
func (f Func) Enhance(ctx context.Context, in Input) (Output, error) {
	return f(ctx, in)
}

// Truncate returns the first n characters of s without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
