package camera

import (
	"errors"
	"fmt"
)

var (
	// ErrCameraUnavailable is returned when the requested serial is not
	// enumerated by the underlying device backend.
	ErrCameraUnavailable = errors.New("camera: serial not enumerated")

	// ErrAlreadyInstantiated is returned when a second Camera is opened
	// for a serial that is already open in this process.
	ErrAlreadyInstantiated = errors.New("camera: already instantiated")
)

// ConfigurationError names the first invalid stream configuration
// encountered, or an invalid alignment target.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "camera: configuration error: " + e.Reason
}

func newConfigError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
