package img2ascii

import "errors"

var (
	// ErrImageLoadFailed is returned when the source image cannot be
	// decoded. The caller may retry with a different image.
	ErrImageLoadFailed = errors.New("image load failed")

	// ErrImageProcessingUnavailable is returned when no off-screen surface
	// can be allocated for the supersampled source. It is not retried.
	ErrImageProcessingUnavailable = errors.New("image processing unavailable")

	// ErrArtifactParse is returned when interchange data is malformed or
	// breaks an artifact invariant.
	ErrArtifactParse = errors.New("invalid artifact")
)

// ErrSuperseded is reported for a generation whose result was discarded
// because a newer generation started, or its context ended, first.
var ErrSuperseded = errors.New("generation superseded")
