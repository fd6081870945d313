package protocol

import "fmt"

// IntentKind tags the command variants a caller can request.
type IntentKind int

const (
	// PowerOn turns the unit on, optionally overriding temperature,
	// mode and fan speed.
	PowerOn IntentKind = iota
	// PowerOff turns the unit off.
	PowerOff
	// StatusRequest asks the unit to broadcast its current state.
	StatusRequest
)

func (k IntentKind) String() string {
	switch k {
	case PowerOn:
		return "power_on"
	case PowerOff:
		return "power_off"
	case StatusRequest:
		return "status_request"
	default:
		return "unknown"
	}
}

// Intent describes one command to be synthesized into a frame.
// Temperature, Mode and Fan are overrides: nil leaves the base
// template's value untouched. They only apply to PowerOn.
type Intent struct {
	Kind        IntentKind
	Temperature *int
	Mode        *Mode
	Fan         *FanSpeed
}

// hasOverrides reports whether any PowerOn override is set.
func (in Intent) hasOverrides() bool {
	return in.Temperature != nil || in.Mode != nil || in.Fan != nil
}

// BuildError reports a capability the schema cannot satisfy. No partial
// frame is ever returned alongside one.
type BuildError struct {
	Intent IntentKind
	Reason string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s: %s", e.Intent, e.Reason)
}

// Build synthesizes a complete outbound frame for the intent, targeting
// the device at (subnet, device). The returned frame starts at the AA AA
// marker and carries a correct length byte and CRC trailer; the caller
// prepends the schema prefix before transmission.
//
// Returned warnings flag accepted-but-suspect inputs (out-of-typical
// temperatures are written as-is, devices tolerate them); they never
// accompany an error.
func (s *Schema) Build(intent Intent, subnet, device uint8) (frame []byte, warnings []string, err error) {
	base, err := s.baseFrame(intent)
	if err != nil {
		return nil, nil, err
	}

	frame = make([]byte, len(base))
	copy(frame, base)
	data := frame[headerSize : len(frame)-crcSize]

	writeByte(data, s.SubnetOffset, subnet)
	writeByte(data, s.DeviceOffset, device)

	if intent.Kind == PowerOn {
		if intent.Temperature != nil && s.TemperatureOffset >= 0 {
			t := *intent.Temperature
			if t < MinSetpoint || t > MaxSetpoint {
				warnings = append(warnings,
					fmt.Sprintf("temperature %d°C outside typical range %d-%d, written as-is",
						t, MinSetpoint, MaxSetpoint))
			}
			writeByte(data, s.TemperatureOffset, byte(t))
		}
		if intent.Mode != nil && s.ModeOffset >= 0 {
			writeByte(data, s.ModeOffset, byte(*intent.Mode))
		}
		if intent.Fan != nil {
			writeByte(data, s.FanOffset, byte(*intent.Fan))
		}
	}

	seal(frame)
	return frame, warnings, nil
}

// baseFrame selects the reference template matching the intent.
func (s *Schema) baseFrame(intent Intent) ([]byte, error) {
	switch intent.Kind {
	case PowerOff:
		return s.OffFrame, nil
	case PowerOn:
		if intent.hasOverrides() && s.RichOnFrame != nil {
			return s.RichOnFrame, nil
		}
		return s.OnFrame, nil
	case StatusRequest:
		if s.StatusReqFrame == nil {
			return nil, &BuildError{Intent: StatusRequest, Reason: "schema has no status_request template"}
		}
		return s.StatusReqFrame, nil
	default:
		return nil, &BuildError{Intent: intent.Kind, Reason: "unknown intent"}
	}
}

// writeByte writes v at offset off when the offset fits the data area.
// Offsets discovered from one template family can exceed a shorter base
// frame (the status-request data area is smaller than a command's).
func writeByte(data []byte, off int, v byte) {
	if off >= 0 && off < len(data) {
		data[off] = v
	}
}
