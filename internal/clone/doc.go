// Package clone implements the reference-rewriting core of webclone.
//
// A clone run parses the seed page into a goquery document, rewrites every
// asset reference it understands to a path relative to the site folder, and
// downloads the collected references one after another.
//
// # Components
//
//   - Extractor: one attribute scan per category (script, form, a, img, link, button)
//   - RefSet: the ordered, query-insensitive download set
//   - URLToLocalPath: the lossy mapping from a URL to a relative file path
//   - Persister: wipes the site folder and downloads the reference set
//   - WriteDocument: serializes and formats the rewritten page as index.html
//
// # Local paths
//
// Two references with the same path but different hosts or queries map to
// the same file. The last download wins.
package clone
