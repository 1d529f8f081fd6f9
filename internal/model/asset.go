package model

// AssetStatus is the outcome of one asset download.
type AssetStatus string

const (
	// AssetSaved means the body was written to LocalPath.
	AssetSaved AssetStatus = "saved"
	// AssetSkipped means the URL could not be mapped to a file.
	AssetSkipped AssetStatus = "skipped"
	// AssetFailed means the download or the write failed.
	AssetFailed AssetStatus = "failed"
)

// AssetRecord describes what happened to one entry of the reference set.
type AssetRecord struct {
	// URL is the absolute reference URL with its query stripped.
	URL string `json:"url"`

	// LocalPath is the path relative to the site folder. Empty when skipped
	// before a path could be computed.
	LocalPath string `json:"local_path,omitempty"`

	Status AssetStatus `json:"status"`

	// Bytes is the number of body bytes written.
	Bytes int64 `json:"bytes"`

	// ContentType is the response Content-Type header, if any.
	ContentType string `json:"content_type,omitempty"`

	// Error explains a skip or a failure.
	Error string `json:"error,omitempty"`
}
