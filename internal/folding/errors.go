package folding

import "errors"

// Mapping errors.
var (
	// ErrMapping is wrapped by IntervalMapper implementations when a line range
	// does not map onto the current buffer (typically a stale tree).
	ErrMapping = errors.New("line range does not map onto buffer")
	// ErrInvalidInterval is returned for intervals with a negative offset or length.
	ErrInvalidInterval = errors.New("invalid interval")
)

// Lifecycle errors.
var (
	ErrNotInstalled   = errors.New("folding is not installed")
	ErrRegionNotFound = errors.New("fold region not found")
)

// Sink errors.
var (
	// ErrSinkUnavailable is returned by sinks whose UI has been torn down.
	ErrSinkUnavailable = errors.New("region sink unavailable")
)

// Annotation model errors.
var (
	ErrUnknownAnnotation   = errors.New("annotation not found")
	ErrDuplicateAnnotation = errors.New("annotation already exists")
)
