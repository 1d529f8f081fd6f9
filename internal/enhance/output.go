package enhance

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const (
	// HTMLFile is the enhanced page written next to index.html.
	HTMLFile = "enhanced.html"

	// CSSFile is the enhanced stylesheet.
	CSSFile = "enhanced.css"

	doctype = "<!DOCTYPE html>"
)

// newPolicy allows user-generated content plus the document skeleton and
// stylesheet links a full page needs. Scripts and event handlers are removed.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("html", "head", "body", "title", "header", "footer",
		"nav", "main", "section", "article", "aside", "figure", "figcaption")
	p.AllowAttrs("charset", "name", "content").OnElements("meta")
	p.AllowAttrs("rel", "href", "type", "media").OnElements("link")
	p.AllowAttrs("lang").OnElements("html")
	p.AllowStyling()
	return p
}

// Sanitize removes active content from model-generated HTML.
// The sanitizer drops doctype tokens; a page that started with one gets
// a plain HTML5 doctype back.
func Sanitize(html string) string {
	clean := newPolicy().Sanitize(html)
	if hasDoctype(html) {
		return doctype + "\n" + strings.TrimLeft(clean, " \t\r\n")
	}
	return clean
}

func hasDoctype(html string) bool {
	head := strings.TrimLeft(html, " \t\r\n\ufeff")
	return len(head) >= len("<!doctype") && strings.EqualFold(head[:len("<!doctype")], "<!doctype")
}

// WriteOutput sanitizes out and writes it to siteFolder.
// The stylesheet is only written when the model returned one.
// It returns the written paths.
func WriteOutput(siteFolder string, out Output) ([]string, error) {
	if out.HTML == "" {
		return nil, ErrMissingHTMLBlock
	}
	if err := os.MkdirAll(siteFolder, 0750); err != nil {
		return nil, fmt.Errorf("failed to create site folder: %w", err)
	}

	written := make([]string, 0, 2)
	htmlPath := filepath.Join(siteFolder, HTMLFile)
	if err := os.WriteFile(htmlPath, []byte(Sanitize(out.HTML)), 0644); err != nil { //nolint:gosec // served as a static file
		return written, fmt.Errorf("failed to write %s: %w", htmlPath, err)
	}
	written = append(written, htmlPath)

	if out.CSS == "" {
		return written, nil
	}
	cssPath := filepath.Join(siteFolder, CSSFile)
	if err := os.WriteFile(cssPath, []byte(out.CSS), 0644); err != nil { //nolint:gosec // served as a static file
		return written, fmt.Errorf("failed to write %s: %w", cssPath, err)
	}
	return append(written, cssPath), nil
}
