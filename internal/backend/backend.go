package backend

import "errors"

// ErrNoImage is returned by session operations that need a loaded image.
var ErrNoImage = errors.New("no image loaded")

// Engine creates independent image sessions. Implementations must be safe
// for concurrent NewSession calls; the sessions themselves are not shared.
type Engine interface {
	// NewSession opens a private session. The caller must Release it.
	NewSession() Session

	// Capabilities reports what formats and resampling filters the engine supports.
	Capabilities() Capabilities
}

// Session is one engine handle, used by a single goroutine for a single job.
type Session interface {
	// Load decodes the image at path into the session.
	Load(path string) error

	// Width and Height report the dimensions of the current image.
	Width() int
	Height() int

	// ResizeTo scales the current image to exactly width x height.
	ResizeTo(width, height int) error

	// SetCompressionQuality sets the quality used by EncodeToBlob (1-100).
	SetCompressionQuality(quality int) error

	// SetFormat selects the output encoding by name. Without a call the
	// source format is kept.
	SetFormat(name string) error

	// EncodeToBlob encodes the current image in its source format. A nil or
	// empty blob means encoding failed; LastError then describes why.
	EncodeToBlob() ([]byte, error)

	// Format reports the output format name ("jpeg", "png", ...). Before
	// SetFormat it is the format the image was decoded from.
	Format() string

	// LastError returns the most recent error recorded by the session, or nil.
	LastError() error

	// Release frees everything the session holds. It is safe to call twice.
	Release()
}

// Capabilities describes what an engine supports.
type Capabilities struct {
	Name    string   `json:"name"`
	Formats []string `json:"formats"`
	Filters []string `json:"filters"`
}
