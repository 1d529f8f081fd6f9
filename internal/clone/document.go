package clone

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/PuerkitoBio/goquery"
	"github.com/yosssi/gohtml"
)

// IndexFile is the name of the rewritten entry page inside the site folder.
const IndexFile = "index.html"

// ParseDocument parses an HTML page. The reader must yield UTF-8.
func ParseDocument(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return doc, nil
}

// RenderDocument serializes doc and indents the markup.
func RenderDocument(doc *goquery.Document) (string, error) {
	if doc == nil {
		return "", ErrNoDocument
	}
	raw, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return gohtml.Format(raw), nil
}

// WriteDocument renders doc and writes it to siteFolder/index.html,
// creating the folder if needed. It returns the written path.
func WriteDocument(doc *goquery.Document, siteFolder string) (string, error) {
	rendered, err := RenderDocument(doc)
	if err != nil {
		return "", err
	}
	return WriteSiteFile(siteFolder, IndexFile, []byte(rendered))
}

// WriteSiteFile writes data to name inside siteFolder, creating the folder.
func WriteSiteFile(siteFolder, name string, data []byte) (string, error) {
	if err := os.MkdirAll(siteFolder, 0750); err != nil {
		return "", fmt.Errorf("failed to create site folder: %w", err)
	}
	target := filepath.Join(siteFolder, name)
	if err := os.WriteFile(target, data, 0644); err != nil { //nolint:gosec // cloned pages are served as static files
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}
	return target, nil
}
