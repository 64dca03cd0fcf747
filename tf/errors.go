package tf

import "github.com/pkg/errors"

// ErrEmptyFrameName is returned when a transform names no parent or child frame.
var ErrEmptyFrameName = errors.New("frame name cannot be empty")

// NewFrameNotFoundError returns an error indicating no transforms have been received for a frame.
func NewFrameNotFoundError(frame string) error {
	return errors.Errorf("frame %q does not exist in the transform buffer", frame)
}

// NewNotConnectedError returns an error indicating that two frames are in separate trees.
func NewNotConnectedError(target, source string) error {
	return errors.Errorf("frames %q and %q are not part of the same tree", target, source)
}

// NewExtrapolationError returns an error indicating a lookup outside of the buffered history.
func NewExtrapolationError(frame string, at, oldest, newest string) error {
	return errors.Errorf("lookup of frame %q at %s would require extrapolation, data is available from %s to %s",
		frame, at, oldest, newest)
}
