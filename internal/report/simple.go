package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/webclone/internal/database"
	"github.com/nao1215/webclone/internal/model"
)

const ruleWidth = 70

// SimpleWriter writes human-readable text.
type SimpleWriter struct {
	baseWriter

	// verbose lists every asset with its outcome.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every asset, not only the totals.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs one job.
func (w *SimpleWriter) Write(job *model.CloneJob) (int, error) {
	var sb strings.Builder
	w.writeJob(&sb, job)
	return io.WriteString(w.output, sb.String())
}

// WriteBatch outputs every job followed by a one-line summary.
func (w *SimpleWriter) WriteBatch(jobs []*model.CloneJob) (int, error) {
	var sb strings.Builder
	for _, job := range jobs {
		if job != nil {
			w.writeJob(&sb, job)
		}
	}
	if len(jobs) > 1 {
		sb.WriteString(strings.Repeat("=", ruleWidth))
		fmt.Fprintf(&sb, "\n%d of %d clones succeeded\n", succeeded(jobs), len(jobs))
	}
	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeJob(sb *strings.Builder, job *model.CloneJob) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "URL:      %s\n", job.SeedURL)

	if job.Succeeded() {
		sb.WriteString("Status:   OK\n")
	} else {
		sb.WriteString("Status:   FAILED\n")
	}
	if job.OutputFolder != "" {
		fmt.Fprintf(sb, "Output:   %s\n", job.OutputFolder)
	}

	c := countAssets(job)
	fmt.Fprintf(sb, "Files:    %d (saved %d, skipped %d, failed %d)\n",
		len(job.References), c.saved, c.skipped, c.failed)
	fmt.Fprintf(sb, "Duration: %s\n", job.Duration().Round(time.Millisecond))

	if job.MarkdownWritten {
		sb.WriteString("Markdown: index.md\n")
	}
	if job.EnhanceRequested {
		if job.Enhanced {
			sb.WriteString("Enhanced: yes\n")
		} else {
			sb.WriteString("Enhanced: no (kept original clone)\n")
		}
	}

	if len(job.Errors) > 0 {
		sb.WriteString("\nErrors:\n")
		for _, e := range job.Errors {
			fmt.Fprintf(sb, "  [!] %s\n", e)
		}
	}

	if w.verbose && len(job.Assets) > 0 {
		sb.WriteString("\nAssets:\n")
		for _, a := range job.Assets {
			switch a.Status {
			case model.AssetSaved:
				fmt.Fprintf(sb, "  [+] %s (%d bytes)\n", a.LocalPath, a.Bytes)
			default:
				fmt.Fprintf(sb, "  [-] %s: %s\n", a.URL, a.Error)
			}
		}
	}
	sb.WriteString("\n")
}

// WriteRuns outputs one line per recorded run.
func (w *SimpleWriter) WriteRuns(runs []database.RunSummary) (int, error) {
	var sb strings.Builder
	if len(runs) == 0 {
		sb.WriteString("No clone runs recorded.\n")
		return io.WriteString(w.output, sb.String())
	}

	for _, r := range runs {
		status := "OK    "
		if !r.Success {
			status = "FAILED"
		}
		fmt.Fprintf(&sb, "%s  %s  %-30s %4d files  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			status,
			truncateString(r.Host, 30),
			r.FilesCount,
			r.RunID,
		)
		if w.verbose && r.Error != "" {
			fmt.Fprintf(&sb, "    %s\n", r.Error)
		}
	}
	return io.WriteString(w.output, sb.String())
}
