package model

// CloneResult is the structured outcome of a clone job as returned by the
// CLI JSON output and the HTTP API.
type CloneResult struct {
	Success      bool     `json:"success"`
	URL          string   `json:"url"`
	OutputFolder string   `json:"output_folder,omitempty"`
	FilesCount   int      `json:"files_count"`
	Files        []string `json:"files"`
	Error        string   `json:"error,omitempty"`
	Enhanced     bool     `json:"enhanced"`
}

// Result converts the job into its wire form.
// A failed job that never reached extraction reports no files.
func (j *CloneJob) Result() CloneResult {
	files := j.References
	if files == nil {
		files = []string{}
	}

	res := CloneResult{
		Success:      j.Succeeded(),
		URL:          j.SeedURL,
		OutputFolder: j.OutputFolder,
		FilesCount:   len(files),
		Files:        files,
		Enhanced:     j.Enhanced,
	}
	if !res.Success {
		res.Error = j.ErrorText()
	}
	return res
}

// ErrorText joins the recorded errors into one line.
func (j *CloneJob) ErrorText() string {
	if len(j.Errors) == 0 {
		if j.State == StateFailed {
			return "clone did not complete"
		}
		return ""
	}
	text := j.Errors[0]
	for _, e := range j.Errors[1:] {
		text += "; " + e
	}
	return text
}
