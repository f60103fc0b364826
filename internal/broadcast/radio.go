package broadcast

import (
	"fmt"

	"github.com/google/uuid"
)

// RadioStatus is the usability of the advertising radio.
type RadioStatus int

const (
	RadioReady RadioStatus = iota
	RadioUnsupported
	RadioPoweredOff
)

func (s RadioStatus) String() string {
	switch s {
	case RadioReady:
		return "ready"
	case RadioUnsupported:
		return "unsupported"
	case RadioPoweredOff:
		return "powered-off"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Advertiser is a radio able to broadcast one non-connectable advertisement at a time.
type Advertiser interface {
	// Status reports whether the radio can advertise right now.
	Status() RadioStatus

	// Advertise starts a non-connectable advertisement carrying serviceData
	// under the given service UUID.
	Advertise(serviceID uuid.UUID, serviceData []byte) error

	// StopAdvertising stops the current advertisement, if any.
	StopAdvertising() error

	// PowerEvents delivers radio status changes. A nil channel means the radio
	// never reports changes.
	PowerEvents() <-chan RadioStatus
}
