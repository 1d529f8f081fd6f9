package report

import (
	"io"

	"github.com/nao1215/webclone/internal/database"
	"github.com/nao1215/webclone/internal/model"
)

// Writer renders clone output in one format.
type Writer interface {
	// Write renders a single finished job.
	Write(job *model.CloneJob) (int, error)

	// WriteBatch renders the jobs of one batch in order.
	WriteBatch(jobs []*model.CloneJob) (int, error)

	// WriteRuns renders run history rows.
	WriteRuns(runs []database.RunSummary) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// assetCounts tallies asset outcomes of job.
type assetCounts struct {
	saved, skipped, failed int
}

func countAssets(job *model.CloneJob) assetCounts {
	var c assetCounts
	for _, a := range job.Assets {
		switch a.Status {
		case model.AssetSaved:
			c.saved++
		case model.AssetSkipped:
			c.skipped++
		case model.AssetFailed:
			c.failed++
		}
	}
	return c
}

// succeeded counts the successful jobs.
func succeeded(jobs []*model.CloneJob) int {
	n := 0
	for _, j := range jobs {
		if j != nil && j.Succeeded() {
			n++
		}
	}
	return n
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
