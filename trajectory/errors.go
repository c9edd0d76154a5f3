package trajectory

import "errors"

// ErrInvalidArgument is returned for every command that violates a
// precondition. Errors returned by this package match it with errors.Is.
var ErrInvalidArgument = errors.New("trajectory: invalid argument")

var (
	errNoTarget      = invalidArg("command has no target")
	errNegativeLimit = invalidArg("negative rate or acceleration limit")
	errOutOfRange    = invalidArg("rate or acceleration out of range")
	errDuration      = invalidArg("duration out of range")
	errZeroAccel     = invalidArg("zero acceleration with a required rate change")
	errZeroRate      = invalidArg("angle move without a rate")
	errTooLong       = invalidArg("profile longer than the maximum duration")
	errCompress      = invalidArg("stretch would shorten a phase")
	errStretchRange  = invalidArg("stretched profile out of range")
)

type argError struct {
	reason string
}

func invalidArg(reason string) error {
	return &argError{reason: reason}
}

func (e *argError) Error() string {
	return "trajectory: invalid argument: " + e.reason
}

func (e *argError) Is(target error) bool {
	return target == ErrInvalidArgument
}
