// Package scanner provides read-only discovery and loading of subsystem
// artifacts.
package scanner

// Status is the outcome of looking up a single artifact.
type Status string

const (
	// StatusPresent means the artifact exists and its content was read.
	StatusPresent Status = "present"

	// StatusMissing means the artifact does not exist.
	StatusMissing Status = "missing"

	// StatusError means the artifact exists but could not be read.
	StatusError Status = "error"
)

// DefaultMaxBytes caps how much of a single file is loaded into memory.
const DefaultMaxBytes int64 = 1 << 20

// Artifact is one expected or discovered file of a subsystem.
type Artifact struct {
	// Name is the path relative to the subsystem root, slash separated.
	Name string `json:"name"`

	// Status reports whether the content is available.
	Status Status `json:"status"`

	// Size is the on-disk size in bytes (0 when missing).
	Size int64 `json:"size"`

	// Truncated is set when only the first MaxBytes were loaded.
	Truncated bool `json:"truncated,omitempty"`

	// Error holds the read error message for StatusError.
	Error string `json:"error,omitempty"`

	// Content is the raw text. Empty unless Status is StatusPresent.
	Content string `json:"-"`
}

// Text returns the artifact content and whether it is available. Missing
// and unreadable artifacts report false.
func (a Artifact) Text() (string, bool) {
	if a.Status != StatusPresent {
		return "", false
	}
	return a.Content, true
}

// File is a regular file found while walking a tree.
type File struct {
	// Rel is the path relative to the walked root, slash separated.
	Rel  string `json:"rel"`
	Size int64  `json:"size"`
}

// Request describes what to load from a subsystem root.
type Request struct {
	// Artifacts are known relative file names. Each produces exactly one
	// Artifact in the result, present or not.
	Artifacts []string

	// Extensions selects walked files whose content is loaded as well
	// (for example ".swift"). Matching is case-insensitive.
	Extensions []string

	// Walk lists every file under the root into Result.Files. It is implied
	// when Extensions is non-empty.
	Walk bool

	// Ignore holds extra gitignore-style patterns applied while walking.
	Ignore []string

	// MaxBytes caps per-file reads. Zero means DefaultMaxBytes.
	MaxBytes int64
}

// Result is the outcome of a Scan.
type Result struct {
	Root   string `json:"root"`
	Exists bool   `json:"exists"`

	// Artifacts holds the known artifacts in request order followed by the
	// extension-matched files in walk order.
	Artifacts []Artifact `json:"artifacts"`

	// Files lists every walked file. Nil when no walk was requested.
	Files []File `json:"files,omitempty"`

	// WalkError records a failure to list the tree. Scanning of the known
	// artifacts still proceeds.
	WalkError string `json:"walk_error,omitempty"`
}
