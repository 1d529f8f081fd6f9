package clone

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/webclone/internal/model"
)

// Extractor scans one category of elements, rewrites their reference
// attribute in place and returns the absolute URLs it rewrote.
type Extractor interface {
	// Category returns the category this extractor handles.
	Category() model.Category

	// Extract mutates doc and returns the rewritten references, deduplicated
	// in first-seen order.
	Extract(doc *goquery.Document, base *url.URL) []string
}

// DefaultExtractors returns one extractor per category in extraction order.
func DefaultExtractors() []Extractor {
	return []Extractor{
		&attrExtractor{category: model.CategoryScript, selector: "script[src]", attr: "src", skipAbsolute: true},
		&attrExtractor{category: model.CategoryForm, selector: "form[action]", attr: "action"},
		&attrExtractor{category: model.CategoryAnchor, selector: "a[href]", attr: "href"},
		&attrExtractor{category: model.CategoryImage, selector: "img[src]", attr: "src"},
		&attrExtractor{category: model.CategoryLink, selector: "link[href]", attr: "href"},
		&buttonExtractor{},
	}
}

// Extraction is the outcome of running every extractor over a document.
type Extraction struct {
	// ByCategory holds each extractor's list.
	ByCategory map[model.Category][]string

	// Refs is the combined download set.
	Refs *RefSet
}

// ExtractAll runs the extractors in order and merges their output into one RefSet.
func ExtractAll(doc *goquery.Document, base *url.URL, extractors []Extractor, logger *slog.Logger) *Extraction {
	if logger == nil {
		logger = slog.Default()
	}

	out := &Extraction{
		ByCategory: make(map[model.Category][]string, len(extractors)),
		Refs:       NewRefSet(),
	}
	for _, ex := range extractors {
		refs := ex.Extract(doc, base)
		out.ByCategory[ex.Category()] = refs
		out.Refs.AddAll(refs)
		logger.Debug("extracted references",
			"category", string(ex.Category()),
			"count", len(refs))
	}
	return out
}

// resolver holds the dedup and resolve logic shared by every extractor.
type resolver struct {
	base  *url.URL
	seen  map[string]struct{}
	found []string
}

func newResolver(base *url.URL) *resolver {
	return &resolver{base: base, seen: make(map[string]struct{})}
}

// resolve turns an attribute value into an absolute URL without fragment.
// It returns false for empty values and pseudo-scheme references.
// absolute reports whether the value already carried a scheme.
func (r *resolver) resolve(value string) (resolved string, absolute bool, ok bool) {
	value = strings.TrimSpace(value)
	if isIgnoredReference(value) {
		return "", false, false
	}

	u, err := url.Parse(value)
	if err != nil {
		return "", false, false
	}
	if !u.IsAbs() {
		u = r.base.ResolveReference(u)
	} else {
		absolute = true
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), absolute, true
}

// rewrite computes the attribute value for abs and records abs without
// its query, so query variants of one file are listed once.
func (r *resolver) rewrite(abs string) (string, bool) {
	local, ok := URLToLocalPath(abs, true)
	if !ok {
		return "", false
	}
	key := StripQuery(abs)
	if _, dup := r.seen[key]; !dup {
		r.seen[key] = struct{}{}
		r.found = append(r.found, key)
	}
	return local, true
}

func isIgnoredReference(value string) bool {
	if value == "" || value == "#" {
		return true
	}
	lower := strings.ToLower(value)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// attrExtractor rewrites a single URL-valued attribute.
type attrExtractor struct {
	category model.Category
	selector string
	attr     string

	// skipAbsolute leaves already absolute values untouched and uncollected.
	skipAbsolute bool
}

func (e *attrExtractor) Category() model.Category {
	return e.category
}

func (e *attrExtractor) Extract(doc *goquery.Document, base *url.URL) []string {
	r := newResolver(base)
	doc.Find(e.selector).Each(func(_ int, s *goquery.Selection) {
		value, _ := s.Attr(e.attr)
		abs, absolute, ok := r.resolve(value)
		if !ok || (absolute && e.skipAbsolute) {
			return
		}
		if local, ok := r.rewrite(abs); ok {
			s.SetAttr(e.attr, local)
		}
	})
	return r.found
}

// locationMarker is the assignment a button onclick must contain.
const locationMarker = "location.href="

// buttonExtractor rewrites root-relative location.href redirects in onclick handlers.
type buttonExtractor struct{}

func (e *buttonExtractor) Category() model.Category {
	return model.CategoryButton
}

func (e *buttonExtractor) Extract(doc *goquery.Document, base *url.URL) []string {
	r := newResolver(base)
	doc.Find("button[onclick]").Each(func(_ int, s *goquery.Selection) {
		onclick, _ := s.Attr("onclick")
		target, ok := ParseButtonTarget(onclick)
		if !ok {
			return
		}
		abs, _, ok := r.resolve(target)
		if !ok {
			return
		}
		if local, ok := r.rewrite(abs); ok {
			s.SetAttr("onclick", "location.href='"+local+"'")
		}
	})
	return r.found
}

// ParseButtonTarget extracts the root-relative path assigned to location.href
// in an onclick handler. All whitespace is ignored, the value ends at the
// first ";" and quote characters are dropped.
func ParseButtonTarget(onclick string) (string, bool) {
	compact := strings.Join(strings.Fields(onclick), "")
	_, after, found := strings.Cut(compact, locationMarker)
	if !found {
		return "", false
	}
	if i := strings.IndexByte(after, ';'); i >= 0 {
		after = after[:i]
	}
	target := strings.NewReplacer("'", "", `"`, "", "`", "").Replace(after)
	if !strings.HasPrefix(target, "/") {
		return "", false
	}
	return target, true
}
