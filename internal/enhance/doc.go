// Package enhance post-processes a finished clone with a text-generation model.
//
// The clone pipeline only sees the Enhancer interface. OpenAIClient is the
// bundled implementation and speaks the OpenAI chat-completions protocol,
// which most hosted and self-hosted model servers accept.
//
// The model is asked to return the improved page in a fenced html block and
// the stylesheet in a fenced css block. ParseResponse extracts both; the
// HTML block is required. Output is sanitized before it touches the disk and
// is written next to the clone as enhanced.html and enhanced.css, leaving
// index.html as it was.
package enhance
