package clone

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
)

// MarkdownFile is the name of the Markdown snapshot inside the site folder.
const MarkdownFile = "index.md"

// MarkdownConverter turns a rewritten document into Markdown. Links keep
// the local paths the extractor wrote, so the snapshot navigates the clone.
type MarkdownConverter struct {
	conv *converter.Converter
}

// NewMarkdownConverter creates a converter with the CommonMark and table plugins.
func NewMarkdownConverter() *MarkdownConverter {
	return &MarkdownConverter{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Convert renders doc as Markdown.
func (m *MarkdownConverter) Convert(doc *goquery.Document) (string, error) {
	if doc == nil {
		return "", ErrNoDocument
	}
	raw, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	md, err := m.conv.ConvertString(raw)
	if err != nil {
		return "", fmt.Errorf("failed to convert to markdown: %w", err)
	}
	return strings.TrimSpace(md) + "\n", nil
}

// WriteMarkdown converts doc and writes siteFolder/index.md.
func (m *MarkdownConverter) WriteMarkdown(doc *goquery.Document, siteFolder string) (string, error) {
	md, err := m.Convert(doc)
	if err != nil {
		return "", err
	}
	return WriteSiteFile(siteFolder, MarkdownFile, []byte(md))
}
