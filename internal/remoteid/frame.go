package remoteid

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Every message is a 25 byte service data payload. Layouts, little-endian:
//
//	Basic ID       | 0x00 | UAS ID (20)                                                  | pad (4)
//	Location       | 0x10 | Status (1) | Direction (2) | SpeedH (2) | SpeedV (2) |
//	               |      | Lat (4) | Lon (4) | AltPressure (2) | AltGeodetic (2) |
//	               |      | Height (2) | Accuracy (2) | Timestamp (2, truncated to 1)
//	Self-ID        | 0x20 | DescType (1) | Description (23)
//	System         | 0x30 | OpLocType (1) | OpLat (4) | OpLon (4) | AreaCount (2) |
//	               |      | AreaRadius (4) | AreaCeiling (4) | AreaFloor (4)           | pad (1)
//	Operator ID    | 0x40 | OpIDType (1) | Operator ID (20)                             | pad (3)
//	Authentication | 0x50 | AuthType (1) | Signature (16)                               | pad (7)
const (
	FrameSize = 25

	IdentitySize    = 20
	DescriptionSize = 23
	OperatorIDSize  = 20
	SignatureSize   = 16

	// IDTypeSerial is the UAS ID type carried in the low nibble of the Basic ID header.
	IDTypeSerial = 0x00
	// DescriptionTypeText marks the Self-ID description as free text.
	DescriptionTypeText = 0x01
	// OperatorIDTypeCAA marks the operator ID as issued by a civil aviation authority.
	OperatorIDTypeCAA = 0x00
	// AuthTypeSignature marks the Authentication message as carrying a signature.
	AuthTypeSignature = 0x01

	// ServiceUUID16 is the 16-bit alias of ServiceUUID in the Bluetooth base UUID.
	ServiceUUID16 uint16 = 0xFFFA
)

// ServiceUUID identifies Remote ID service data in an advertisement (ASTM F3411-22a).
var ServiceUUID = uuid.MustParse("0000FFFA-0000-1000-8000-00805F9B34FB")

// ErrMissingRequiredField is returned when a message needs a text field the snapshot lacks.
var ErrMissingRequiredField = errors.New("missing required field")

// MessageKind is one of the six Direct Remote ID message types.
type MessageKind uint8

const (
	KindBasicID        MessageKind = 0x0
	KindLocation       MessageKind = 0x1
	KindSelfID         MessageKind = 0x2
	KindSystem         MessageKind = 0x3
	KindOperatorID     MessageKind = 0x4
	KindAuthentication MessageKind = 0x5

	numKinds = 6
)

// Header returns the leading byte of the message: the kind in the high nibble.
func (k MessageKind) Header() byte {
	return byte(k) << 4
}

func (k MessageKind) String() string {
	switch k {
	case KindBasicID:
		return "basic-id"
	case KindLocation:
		return "location"
	case KindSelfID:
		return "self-id"
	case KindSystem:
		return "system"
	case KindOperatorID:
		return "operator-id"
	case KindAuthentication:
		return "authentication"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Frame is an encoded message. Payload is either exactly FrameSize bytes or nil.
type Frame struct {
	Kind    MessageKind
	Payload []byte
}

// IsEmpty reports whether the frame carries no payload and must not be transmitted.
func (f Frame) IsEmpty() bool {
	return len(f.Payload) == 0
}
