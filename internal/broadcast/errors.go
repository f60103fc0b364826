package broadcast

import (
	"errors"
	"fmt"
)

var (
	// ErrRadioUnavailable is returned by Start when the radio cannot advertise.
	ErrRadioUnavailable = errors.New("radio unavailable")

	// ErrRadioPoweredOff is returned by Start when the radio is switched off.
	// It matches ErrRadioUnavailable with errors.Is.
	ErrRadioPoweredOff = fmt.Errorf("%w: powered off", ErrRadioUnavailable)

	// ErrAdvertiseFailed wraps radio errors while starting or stopping an advertisement
	ErrAdvertiseFailed = errors.New("advertise failed")

	// ErrInvalidSnapshot is returned by Start when no snapshot is given
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// statusError maps a radio status to the error Start reports for it.
func statusError(s RadioStatus) error {
	switch s {
	case RadioReady:
		return nil
	case RadioPoweredOff:
		return ErrRadioPoweredOff
	default:
		return fmt.Errorf("%w: %s", ErrRadioUnavailable, s)
	}
}
