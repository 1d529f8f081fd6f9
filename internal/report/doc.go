// Package report renders clone jobs and run history.
//
// Three writers share the Writer interface:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: the CloneResult wire form, or full jobs, for tooling
//   - MarkdownWriter: tables and an asset status chart for sharing
package report
