package modelindex

import "github.com/jkoski/flowdeps/internal/errors"

// Sentinel errors for index operations.
// These typed errors enable callers to distinguish between different
// failure modes without relying on string matching or GORM-specific errors.
var (
	// ErrSizeConflict indicates a hash was asserted with a size that
	// conflicts with the recorded one.
	ErrSizeConflict = errors.NewStd("model size conflicts with recorded size")

	// ErrLocationForUnknownModel indicates a location was added for a hash
	// that has no record.
	ErrLocationForUnknownModel = errors.NewStd("location references unknown model hash")
)
