package protocol

import (
	"bytes"
	"fmt"
)

// FrameErrorKind distinguishes the structural failure modes of a frame.
type FrameErrorKind int

const (
	// MarkerNotFound means the AA AA marker is absent from the packet.
	MarkerNotFound FrameErrorKind = iota
	// LengthMismatch means the length byte disagrees with the actual
	// frame size (or the frame is too short to carry one).
	LengthMismatch
	// CRCMismatch means the trailing checksum does not match.
	CRCMismatch
)

func (k FrameErrorKind) String() string {
	switch k {
	case MarkerNotFound:
		return "marker not found"
	case LengthMismatch:
		return "length mismatch"
	case CRCMismatch:
		return "crc mismatch"
	default:
		return "unknown"
	}
}

// FrameError describes why a frame failed structural validation.
type FrameError struct {
	Kind   FrameErrorKind
	Detail string
}

func (e *FrameError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("frame: %s", e.Kind)
	}
	return fmt.Sprintf("frame: %s: %s", e.Kind, e.Detail)
}

var frameMarker = []byte{MarkerByte, MarkerByte}

// Split separates a raw packet into the opaque gateway prefix and the
// frame starting at the first AA AA marker.
func Split(raw []byte) (prefix, frame []byte, err error) {
	pos := bytes.Index(raw, frameMarker)
	if pos < 0 {
		return nil, nil, &FrameError{Kind: MarkerNotFound}
	}
	return raw[:pos], raw[pos:], nil
}

// Validate checks a frame's structure: marker, length byte (which counts
// itself plus everything through the CRC trailer) and the CRC itself.
func Validate(frame []byte) error {
	if len(frame) < MinFrameSize {
		return &FrameError{
			Kind:   LengthMismatch,
			Detail: fmt.Sprintf("frame too short: %d bytes (minimum %d)", len(frame), MinFrameSize),
		}
	}
	if frame[0] != MarkerByte || frame[1] != MarkerByte {
		return &FrameError{Kind: MarkerNotFound, Detail: "frame does not start with AA AA"}
	}

	length := int(frame[2])
	// The length byte counts itself plus the data area plus the CRC.
	if length != 1+(len(frame)-headerSize) {
		return &FrameError{
			Kind: LengthMismatch,
			Detail: fmt.Sprintf("length byte %d declares %d trailing bytes, frame carries %d",
				length, length-1, len(frame)-headerSize),
		}
	}

	stored := uint16(frame[len(frame)-2])<<8 | uint16(frame[len(frame)-1])
	computed := CRC16(frame[2 : len(frame)-crcSize])
	if stored != computed {
		return &FrameError{
			Kind:   CRCMismatch,
			Detail: fmt.Sprintf("stored %04X, computed %04X", stored, computed),
		}
	}
	return nil
}

// DataArea returns the bytes strictly between the length byte and the
// CRC trailer of a validated frame.
func DataArea(frame []byte) []byte {
	return frame[headerSize : len(frame)-crcSize]
}

// seal rewrites the length byte and CRC trailer of a frame in place so
// that it passes Validate.
func seal(frame []byte) {
	dataLen := len(frame) - headerSize - crcSize
	frame[2] = byte(1 + dataLen + crcSize)
	crc := CRC16(frame[2 : len(frame)-crcSize])
	frame[len(frame)-2] = byte(crc >> 8)
	frame[len(frame)-1] = byte(crc)
}
