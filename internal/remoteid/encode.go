package remoteid

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode builds the message of the given kind from the snapshot. The signature is only
// used by KindAuthentication. A missing required text field returns an empty frame and an
// error wrapping ErrMissingRequiredField; the caller should skip the transmission.
func Encode(kind MessageKind, s *Snapshot, signature []byte) (Frame, error) {
	if s == nil {
		return Frame{Kind: kind}, fmt.Errorf("%s: %w: nil snapshot", kind, ErrMissingRequiredField)
	}

	switch kind {
	case KindBasicID:
		return EncodeBasicID(s)
	case KindLocation:
		return EncodeLocation(s), nil
	case KindSelfID:
		return EncodeSelfID(s)
	case KindSystem:
		return EncodeSystem(s), nil
	case KindOperatorID:
		return EncodeOperatorID(s)
	case KindAuthentication:
		return EncodeAuthentication(signature), nil
	default:
		return Frame{Kind: kind}, fmt.Errorf("unknown message kind %d", uint8(kind))
	}
}

// EncodeBasicID encodes the UAS identity as a serial number.
func EncodeBasicID(s *Snapshot) (Frame, error) {
	if s.Identity == "" {
		return Frame{Kind: KindBasicID}, fmt.Errorf("%s: %w: identity", KindBasicID, ErrMissingRequiredField)
	}

	p := make([]byte, 0, FrameSize)
	p = append(p, KindBasicID.Header()|IDTypeSerial)
	p = append(p, asciiField(s.Identity, IdentitySize)...)

	return newFrame(KindBasicID, p), nil
}

// EncodeLocation encodes position and vector data. Missing values encode as zero.
func EncodeLocation(s *Snapshot) Frame {
	p := make([]byte, 0, FrameSize+1)
	p = append(p, KindLocation.Header())
	p = append(p, s.Status)
	p = binary.LittleEndian.AppendUint16(p, centidegrees(s.Direction))
	p = binary.LittleEndian.AppendUint16(p, fixed16(s.SpeedHorizontal, 100))
	p = binary.LittleEndian.AppendUint16(p, fixed16(s.SpeedVertical, 100))
	p = binary.LittleEndian.AppendUint32(p, fixed32(s.Latitude, 1e7))
	p = binary.LittleEndian.AppendUint32(p, fixed32(s.Longitude, 1e7))
	p = binary.LittleEndian.AppendUint16(p, fixed16(s.AltitudePressure, 10))
	p = binary.LittleEndian.AppendUint16(p, fixed16(s.AltitudeGeodetic, 10))
	p = binary.LittleEndian.AppendUint16(p, fixed16(s.Height, 10))
	p = append(p, 0x00, 0x00)                       // horizontal/vertical, speed/baro accuracy
	p = binary.LittleEndian.AppendUint16(p, 0x0000) // timestamp, cut to one byte by newFrame

	return newFrame(KindLocation, p)
}

// EncodeSelfID encodes the free text description.
func EncodeSelfID(s *Snapshot) (Frame, error) {
	if s.Description == "" {
		return Frame{Kind: KindSelfID}, fmt.Errorf("%s: %w: description", KindSelfID, ErrMissingRequiredField)
	}

	p := make([]byte, 0, FrameSize)
	p = append(p, KindSelfID.Header(), DescriptionTypeText)
	p = append(p, asciiField(s.Description, DescriptionSize)...)

	return newFrame(KindSelfID, p), nil
}

// EncodeSystem encodes the operator position and the operating area.
func EncodeSystem(s *Snapshot) Frame {
	p := make([]byte, 0, FrameSize)
	p = append(p, KindSystem.Header())
	p = append(p, s.OperatorLocationType)
	p = binary.LittleEndian.AppendUint32(p, fixed32(s.OperatorLatitude, 1e7))
	p = binary.LittleEndian.AppendUint32(p, fixed32(s.OperatorLongitude, 1e7))
	p = binary.LittleEndian.AppendUint16(p, fixed16(float64(s.Area.Count), 1))
	p = binary.LittleEndian.AppendUint32(p, fixed32(float64(s.Area.Radius), 1))
	p = binary.LittleEndian.AppendUint32(p, fixed32(s.Area.Ceiling, 10))
	p = binary.LittleEndian.AppendUint32(p, fixed32(s.Area.Floor, 10))

	return newFrame(KindSystem, p)
}

// EncodeOperatorID encodes the CAA issued operator ID.
func EncodeOperatorID(s *Snapshot) (Frame, error) {
	if s.OperatorID == "" {
		return Frame{Kind: KindOperatorID}, fmt.Errorf("%s: %w: operator id", KindOperatorID, ErrMissingRequiredField)
	}

	p := make([]byte, 0, FrameSize)
	p = append(p, KindOperatorID.Header(), OperatorIDTypeCAA)
	p = append(p, asciiField(s.OperatorID, OperatorIDSize)...)

	return newFrame(KindOperatorID, p), nil
}

// EncodeAuthentication encodes the first SignatureSize bytes of signature.
// A shorter signature is zero padded.
func EncodeAuthentication(signature []byte) Frame {
	sig := make([]byte, SignatureSize)
	copy(sig, signature)

	p := make([]byte, 0, FrameSize)
	p = append(p, KindAuthentication.Header(), AuthTypeSignature)
	p = append(p, sig...)

	return newFrame(KindAuthentication, p)
}

// newFrame pads or truncates p to exactly FrameSize bytes.
func newFrame(kind MessageKind, p []byte) Frame {
	payload := make([]byte, FrameSize)
	copy(payload, p)
	return Frame{Kind: kind, Payload: payload}
}

// fixed16 scales v, rounds to nearest and saturates to the int16 range.
func fixed16(v, scale float64) uint16 {
	return uint16(int16(fixed(v, scale, math.MinInt16, math.MaxInt16)))
}

// fixed32 scales v, rounds to nearest and saturates to the int32 range.
func fixed32(v, scale float64) uint32 {
	return uint32(int32(fixed(v, scale, math.MinInt32, math.MaxInt32)))
}

func fixed(v, scale, lo, hi float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}

	x := math.Round(v * scale)
	switch {
	case x < lo:
		return int64(lo)
	case x > hi:
		return int64(hi)
	}
	return int64(x)
}

// centidegrees normalises a direction to [0, 360) and returns it in hundredths of a degree.
func centidegrees(deg float64) uint16 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}

	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}

	c := math.Round(deg * 100)
	if c >= 36000 {
		c = 0
	}
	return uint16(c)
}
