package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/webclone/internal/database"
	"github.com/nao1215/webclone/internal/model"
)

// MarkdownWriter outputs GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs one job as a document.
func (w *MarkdownWriter) Write(job *model.CloneJob) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("webclone Report")
	md.PlainText("")
	w.writeJob(md, job)
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

// WriteBatch outputs a summary table followed by one section per job.
func (w *MarkdownWriter) WriteBatch(jobs []*model.CloneJob) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("webclone Report")
	md.PlainText("")

	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		rows = append(rows, []string{
			"`" + job.SeedURL + "`",
			statusText(job),
			strconv.Itoa(len(job.References)),
		})
	}
	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Files"},
		Rows:   rows,
	})
	md.PlainText("")
	md.PlainTextf("%d of %d clones succeeded.", succeeded(jobs), len(jobs))
	md.PlainText("")

	for _, job := range jobs {
		if job == nil {
			continue
		}
		md.H2(job.SiteFolder)
		md.PlainText("")
		w.writeJob(md, job)
	}
	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeJob(md *markdown.Markdown, job *model.CloneJob) {
	c := countAssets(job)
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"URL", "`" + job.SeedURL + "`"},
			{"Output", "`" + job.OutputFolder + "`"},
			{"Started", job.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", job.Duration().Round(time.Millisecond).String()},
			{"Files", strconv.Itoa(len(job.References))},
			{"Status", statusText(job)},
		},
	})
	md.PlainText("")

	if len(job.Errors) > 0 {
		md.Cautionf("%s", strings.Join(job.Errors, "; "))
		md.PlainText("")
	} else if c.failed > 0 {
		md.Warningf("%d asset(s) could not be downloaded.", c.failed)
		md.PlainText("")
	}

	if len(job.Assets) == 0 {
		return
	}
	w.writeChart(md, c)
	w.writeAssets(md, job.Assets)
}

// writeChart writes a mermaid pie chart of asset outcomes.
func (w *MarkdownWriter) writeChart(md *markdown.Markdown, c assetCounts) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Asset Outcomes"),
		piechart.WithShowData(true),
	)
	if c.saved > 0 {
		chart.LabelAndIntValue("Saved", uint64(c.saved))
	}
	if c.skipped > 0 {
		chart.LabelAndIntValue("Skipped", uint64(c.skipped))
	}
	if c.failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(c.failed))
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAssets(md *markdown.Markdown, assets []model.AssetRecord) {
	rows := make([][]string, len(assets))
	for i, a := range assets {
		local := a.LocalPath
		if local == "" {
			local = "-"
		}
		detail := strconv.FormatInt(a.Bytes, 10) + " bytes"
		if a.Error != "" {
			detail = truncateString(a.Error, 60)
		}
		rows[i] = []string{truncateString(a.URL, 60), local, string(a.Status), detail}
	}
	md.H3("Assets")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Local Path", "Status", "Detail"},
		Rows:   rows,
	})
	md.PlainText("")
}

// WriteRuns outputs history rows as a table.
func (w *MarkdownWriter) WriteRuns(runs []database.RunSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)
	md.H1("Clone History")
	md.PlainText("")

	if len(runs) == 0 {
		md.PlainText("No clone runs recorded.")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(runs))
	for i, r := range runs {
		status := "✅ OK"
		if !r.Success {
			status = "❌ " + truncateString(r.Error, 50)
		}
		rows[i] = []string{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Host,
			status,
			strconv.Itoa(r.FilesCount),
			"`" + r.RunID + "`",
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Started", "Host", "Status", "Files", "Run ID"},
		Rows:   rows,
	})
	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by webclone*")
}

func statusText(job *model.CloneJob) string {
	if job.Succeeded() {
		return "✅ Complete"
	}
	return "❌ Failed"
}
