package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/webclone/internal/database"
	"github.com/nao1215/webclone/internal/model"
)

// JSONWriter outputs JSON. By default a job is written in its CloneResult
// wire form, the same shape the HTTP API and the original CLI use.
type JSONWriter struct {
	baseWriter

	indentPrefix string
	indentString string
	indent       bool

	// fullJob writes the whole job including assets and step list.
	fullJob bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithFullJob writes complete jobs instead of CloneResult.
func WithFullJob(full bool) JSONWriterOption {
	return func(w *JSONWriter) {
		w.fullJob = full
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs one job as a JSON object.
func (w *JSONWriter) Write(job *model.CloneJob) (int, error) {
	return w.writeJSON(w.value(job))
}

// WriteBatch outputs the jobs as a JSON array.
func (w *JSONWriter) WriteBatch(jobs []*model.CloneJob) (int, error) {
	values := make([]any, 0, len(jobs))
	for _, job := range jobs {
		if job != nil {
			values = append(values, w.value(job))
		}
	}
	return w.writeJSON(values)
}

// WriteRuns outputs history rows as a JSON array.
func (w *JSONWriter) WriteRuns(runs []database.RunSummary) (int, error) {
	if runs == nil {
		runs = []database.RunSummary{}
	}
	return w.writeJSON(runs)
}

func (w *JSONWriter) value(job *model.CloneJob) any {
	if w.fullJob {
		return job
	}
	return job.Result()
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
