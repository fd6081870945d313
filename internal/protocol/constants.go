package protocol

import "fmt"

// Frame structure constants
const (
	// MarkerByte repeated twice marks the start of a frame. Everything
	// before the marker is an opaque gateway prefix.
	MarkerByte = 0xAA

	// MinFrameSize is marker(2) + length(1) + at least the CRC trailer.
	MinFrameSize = 4

	// headerSize covers the two marker bytes and the length byte.
	headerSize = 3

	// crcSize is the big-endian CRC-16 trailer.
	crcSize = 2
)

// Mode is an HVAC operating mode byte as carried on the bus.
type Mode byte

// HVAC mode bytes (verified from captured command frames)
const (
	ModeCool Mode = 0x00
	ModeFan  Mode = 0x02
	ModeDry  Mode = 0x04
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeCool:
		return "cool"
	case ModeFan:
		return "fan_only"
	case ModeDry:
		return "dry"
	default:
		return "unknown"
	}
}

// ParseMode maps a user-facing mode name to its bus byte.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "cool":
		return ModeCool, nil
	case "fan", "fan_only":
		return ModeFan, nil
	case "dry":
		return ModeDry, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (use cool, fan, dry)", s)
	}
}

// FanSpeed is a fan speed byte as carried on the bus.
type FanSpeed byte

// Fan speed bytes
const (
	FanAuto   FanSpeed = 0x00
	FanHigh   FanSpeed = 0x01
	FanMedium FanSpeed = 0x02
	FanLow    FanSpeed = 0x03
)

// String returns a human-readable fan speed name.
func (f FanSpeed) String() string {
	switch f {
	case FanAuto:
		return "auto"
	case FanHigh:
		return "high"
	case FanMedium:
		return "medium"
	case FanLow:
		return "low"
	default:
		return "unknown"
	}
}

// ParseFanSpeed maps a user-facing fan speed name to its bus byte.
func ParseFanSpeed(s string) (FanSpeed, error) {
	switch s {
	case "auto":
		return FanAuto, nil
	case "high":
		return FanHigh, nil
	case "medium", "med":
		return FanMedium, nil
	case "low":
		return FanLow, nil
	default:
		return 0, fmt.Errorf("unknown fan speed %q (use auto, high, medium, low)", s)
	}
}

// FanSpeedOffset is the data-area offset of the fan speed byte in command
// frames. Unlike temperature and mode it is not discovered from templates:
// no captured template pair isolates it, so it is carried as an
// empirically-established constant.
const FanSpeedOffset = 12

// Typical setpoint range in whole degrees Celsius. The builder writes
// out-of-range values as-is (devices tolerate them) but flags a warning;
// the decoder treats out-of-range setpoints as absent.
const (
	MinSetpoint = 18
	MaxSetpoint = 30
)
