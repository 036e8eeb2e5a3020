package updater

import (
	"path"
	"strings"
	"time"
)

// LatestTag is the release selector that resolves to the newest published release
const LatestTag = "latest"

// Known file types the worker dispatches on
const (
	FileTypeZip   = "zip"
	FileTypeTarGz = "tar.gz"
)

// Asset represents a downloadable file attached to a release
type Asset struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"browser_download_url"`
}

// FileType returns the install strategy token for the asset
func (a Asset) FileType() string {
	return FileTypeOf(a.Name)
}

// FileTypeOf derives the file type token from a file name: the lower-cased
// text after the last dot, with .tar.gz and .tgz both mapped to "tar.gz".
func FileTypeOf(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FileTypeTarGz
	}
	idx := strings.LastIndex(lower, ".")
	if idx < 0 || idx == len(lower)-1 {
		return ""
	}
	return lower[idx+1:]
}

// Request describes one download-and-install invocation
type Request struct {
	URL         string // asset download URL (http or https)
	FileType    string // lower-case token without leading dot
	Destination string // install folder, created if absent
	AssetName   string // optional, used to name moved files
	Size        int64  // optional advertised asset size
}

// RequestFor builds a request for installing asset into destination
func RequestFor(asset Asset, destination string) Request {
	return Request{
		URL:         asset.DownloadURL,
		FileType:    asset.FileType(),
		Destination: destination,
		AssetName:   asset.Name,
		Size:        asset.Size,
	}
}

// installName picks the file name used when moving a non-archive into place
func (r Request) installName(tempName string) string {
	if r.AssetName != "" {
		if base := path.Base(strings.ReplaceAll(r.AssetName, "\\", "/")); usableName(base) {
			return base
		}
	}
	if base := path.Base(urlPath(r.URL)); usableName(base) {
		return base
	}
	return tempName
}

// usableName rejects base names that would resolve to the destination
// folder or its parent
func usableName(base string) bool {
	switch base {
	case "", ".", "..", "/":
		return false
	}
	return true
}

// Progress is a rate-limited snapshot of a running download
type Progress struct {
	Percent    int    // 0-100, always 0 when the total is unknown
	SizeText   string // "12.00 / 100.00 MB" or "Unknown size"
	SpeedText  string // "3.50 MB/s"
	Downloaded int64
	Total      int64 // -1 when unknown
	At         time.Time
}

// Outcome is the single terminal result of a job
type Outcome struct {
	Success bool
	Message string
	Err     error
}

// Event is either a progress update or the terminal outcome.
// Exactly one of the fields is set.
type Event struct {
	Progress *Progress
	Outcome  *Outcome
}

// Observer receives job notifications on the caller's goroutine
type Observer interface {
	OnProgress(percent int, sizeText, speedText string)
	OnFinished(success bool, message string)
}
