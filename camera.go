package shutter

import "context"

// ResultType selects how a camera hands back a captured image.
type ResultType string

// Source selects where a camera takes the image from.
type Source string

const (
	ResultURI ResultType = "uri"

	SourceCamera Source = "camera"
)

// MaxQuality is the JPEG quality requested for every capture.
const MaxQuality = 100

// CaptureOptions are passed to Camera.Capture.
type CaptureOptions struct {
	Result  ResultType
	Source  Source
	Quality int
}

// DefaultCaptureOptions returns the fixed options used by the library.
func DefaultCaptureOptions() CaptureOptions {
	return CaptureOptions{
		Result:  ResultURI,
		Source:  SourceCamera,
		Quality: MaxQuality,
	}
}

// Photo is the result of a capture. URI is always set and resolvable
// (http, https or file scheme). Path is set when the image also exists
// as a local file readable through native file access.
type Photo struct {
	URI  string
	Path string
}

// Camera captures a single still image.
type Camera interface {
	Capture(ctx context.Context, opts CaptureOptions) (Photo, error)
}
