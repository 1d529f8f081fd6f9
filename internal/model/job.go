package model

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

// ErrInvalidSeedURL is returned when a seed URL is not an absolute http(s) URL.
var ErrInvalidSeedURL = errors.New("seed URL must be an absolute http or https URL")

// JobState is the position of a CloneJob in the clone state machine.
type JobState string

const (
	// StateFetching means the seed page is being downloaded.
	StateFetching JobState = "fetching"
	// StateExtracting means references are being collected and rewritten.
	StateExtracting JobState = "extracting"
	// StatePersisting means assets are being downloaded to disk.
	StatePersisting JobState = "persisting"
	// StateWriting means the rewritten document is being written.
	StateWriting JobState = "writing"
	// StateEnhancing means the optional enhancement step is running.
	StateEnhancing JobState = "enhancing"
	// StateDone is the terminal success state.
	StateDone JobState = "done"
	// StateFailed is the terminal failure state.
	StateFailed JobState = "failed"
)

// IsTerminal reports whether no further transition can happen.
func (s JobState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// Category identifies one attribute scan of the reference extractor.
type Category string

const (
	CategoryScript Category = "script"
	CategoryForm   Category = "form"
	CategoryAnchor Category = "a"
	CategoryImage  Category = "img"
	CategoryLink   Category = "link"
	CategoryButton Category = "button"
)

// Categories lists every category in extraction order.
// The order determines the download order of the reference set.
var Categories = []Category{ //nolint:gochecknoglobals // fixed extraction order
	CategoryScript,
	CategoryForm,
	CategoryAnchor,
	CategoryImage,
	CategoryLink,
	CategoryButton,
}

// CloneJob carries everything known about one clone run.
// Pipeline steps read and mutate it in order; it is not safe for
// concurrent use, and each job owns its session and output folder.
type CloneJob struct {
	// RunID uniquely identifies this run in the history database.
	RunID string `json:"run_id"`

	// SeedURL is the page being cloned, exactly as given.
	SeedURL string `json:"url"`

	// BaseURL is the parsed seed URL used to resolve relative references.
	BaseURL *url.URL `json:"-"`

	// OutputRoot is the directory holding one folder per site.
	OutputRoot string `json:"output_root"`

	// SiteFolder is the lowercased host name of the seed URL without port.
	SiteFolder string `json:"site_folder"`

	// OutputFolder is OutputRoot joined with SiteFolder.
	OutputFolder string `json:"output_folder"`

	// State is the current state machine position.
	State JobState `json:"state"`

	// References is the deduplicated download set in first-seen order.
	References []string `json:"references"`

	// CategoryRefs holds the per-category lists as extracted.
	CategoryRefs map[Category][]string `json:"category_refs,omitempty"`

	// Assets records the outcome of every attempted download.
	Assets []AssetRecord `json:"assets,omitempty"`

	// EnhanceRequested asks the pipeline to run the enhancement step.
	EnhanceRequested bool `json:"enhance_requested"`

	// MarkdownRequested asks the pipeline to write an index.md snapshot.
	MarkdownRequested bool `json:"markdown_requested"`

	// Enhanced is true when enhanced output was written.
	Enhanced bool `json:"enhanced"`

	// MarkdownWritten is true when index.md was written.
	MarkdownWritten bool `json:"markdown_written"`

	// DocumentWritten is true when index.html was written.
	DocumentWritten bool `json:"document_written"`

	// Steps lists the names of the pipeline steps that ran.
	Steps []string `json:"steps"`

	// Errors collects step failures as "step: message".
	Errors []string `json:"errors,omitempty"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Document is the parsed seed page. It is mutated in place by the
	// extractor and serialized once by the document writer.
	Document *goquery.Document `json:"-"`
}

// NewCloneJob validates seedURL and prepares a job writing below outputRoot.
func NewCloneJob(seedURL, outputRoot string) (*CloneJob, error) {
	base, err := ParseSeedURL(seedURL)
	if err != nil {
		return nil, err
	}

	site := SiteFolderName(base)
	return &CloneJob{
		RunID:        uuid.NewString(),
		SeedURL:      seedURL,
		BaseURL:      base,
		OutputRoot:   outputRoot,
		SiteFolder:   site,
		OutputFolder: filepath.Join(outputRoot, site),
		State:        StateFetching,
		CategoryRefs: make(map[Category][]string),
		StartedAt:    time.Now(),
	}, nil
}

// NewFailedJob returns a finished, failed job for a seed URL that could not
// be started, for example because it did not validate. The site folder is
// filled in when seedURL parses so that history can group the run by host.
func NewFailedJob(seedURL, outputRoot string, err error) *CloneJob {
	now := time.Now()
	job := &CloneJob{
		RunID:        uuid.NewString(),
		SeedURL:      seedURL,
		OutputRoot:   outputRoot,
		State:        StateFailed,
		CategoryRefs: make(map[Category][]string),
		StartedAt:    now,
		FinishedAt:   now,
	}
	if u, perr := ParseSeedURL(seedURL); perr == nil {
		job.SiteFolder = SiteFolderName(u)
	}
	job.AddError("validate", err)
	return job
}

// ParseSeedURL parses raw and checks that it is an absolute http(s) URL with a host.
func ParseSeedURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeedURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeedURL, raw)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidSeedURL, raw)
	}
	return u, nil
}

// SiteFolderName returns the folder name used for u's host.
func SiteFolderName(u *url.URL) string {
	return strings.ToLower(u.Hostname())
}

// SetState moves the job to state.
func (j *CloneJob) SetState(state JobState) {
	j.State = state
}

// AddStep records that the named step ran.
func (j *CloneJob) AddStep(name string) {
	j.Steps = append(j.Steps, name)
}

// AddError records a failure of the named step.
func (j *CloneJob) AddError(step string, err error) {
	if err == nil {
		return
	}
	j.Errors = append(j.Errors, fmt.Sprintf("%s: %v", step, err))
}

// HasErrors reports whether any step recorded an error.
func (j *CloneJob) HasErrors() bool {
	return len(j.Errors) > 0
}

// AddAsset appends an asset outcome.
func (j *CloneJob) AddAsset(rec AssetRecord) {
	j.Assets = append(j.Assets, rec)
}

// SavedAssets returns the records whose file was written.
func (j *CloneJob) SavedAssets() []AssetRecord {
	saved := make([]AssetRecord, 0, len(j.Assets))
	for _, a := range j.Assets {
		if a.Status == AssetSaved {
			saved = append(saved, a)
		}
	}
	return saved
}

// Finish sets the terminal state from the recorded errors.
func (j *CloneJob) Finish() {
	if j.HasErrors() || !j.DocumentWritten {
		j.State = StateFailed
	} else {
		j.State = StateDone
	}
	j.FinishedAt = time.Now()
}

// Succeeded reports whether the job finished without errors.
func (j *CloneJob) Succeeded() bool {
	return j.State == StateDone
}

// Duration returns how long the run took. It is zero until Finish is called.
func (j *CloneJob) Duration() time.Duration {
	if j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}
