package clone

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NormalizeCharset rewrites <meta> charset declarations to UTF-8.
// Seed pages are decoded to UTF-8 before parsing, so a leftover
// declaration of the original encoding would make browsers misread the clone.
func NormalizeCharset(doc *goquery.Document) {
	doc.Find("meta[charset]").SetAttr("charset", "utf-8")
	doc.Find("meta[http-equiv]").Each(func(_ int, s *goquery.Selection) {
		equiv, _ := s.Attr("http-equiv")
		if strings.EqualFold(equiv, "content-type") {
			s.SetAttr("content", "text/html; charset=utf-8")
		}
	})
}
