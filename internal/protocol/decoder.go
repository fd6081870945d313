package protocol

// Status broadcast decoding. The bus carries many packet kinds; only
// three broadcast shapes describe AC state, distinguished by the length
// byte acting as a packet-type discriminant. Field positions per shape
// are a closed table derived from captured traffic - they are fixed, not
// inferred, and anything outside the table is ignored rather than
// treated as an error.

// PacketType is the length-byte discriminant of an AC status broadcast.
type PacketType byte

const (
	// PacketPeriodic is the short broadcast the unit emits on a timer
	// and after most commands.
	PacketPeriodic PacketType = 0x19
	// PacketExtended is the longer periodic shape some firmware emits.
	PacketExtended PacketType = 0x1B
	// PacketResponse answers an explicit status request.
	PacketResponse PacketType = 0x21
)

// statusLayout fixes where each field sits in a shape's data area.
// An offset of -1 marks a field the shape does not carry. Power decoding
// differs per shape: most report ON as anything other than the OFF
// sentinel 0x00, the response shape reports ON only as the literal 0x01.
type statusLayout struct {
	power       int
	targetTemp  int
	currentTemp int
	mode        int
	fan         int
	onByEquals  bool // power == onByte means on (vs != offSentinel)
}

const (
	offSentinel = 0x00
	onByte      = 0x01
)

var statusLayouts = map[PacketType]statusLayout{
	PacketPeriodic: {power: 8, targetTemp: 10, mode: 11, fan: 12, currentTemp: 13},
	PacketExtended: {power: 9, targetTemp: 11, mode: 12, fan: 13, currentTemp: 14},
	PacketResponse: {power: 15, targetTemp: 17, mode: 18, fan: 19, currentTemp: 20, onByEquals: true},
}

// Sensor readings range wider than setpoints; values outside either
// range are padding or encoding noise and decode as absent. The sensor
// floor is 1, not 0: a 0x00 sensor byte is the shapes' padding value
// and cannot be told apart from "no reading".
const (
	minDecodedSetpoint = 16
	maxDecodedSetpoint = 35
	minSensorTemp      = 1
	maxSensorTemp      = 50
)

// StatusRecord is one decoded AC status broadcast. Optional fields are
// nil when the shape does not carry them or the value failed its range
// check; a nil field means "unknown", never zero.
type StatusRecord struct {
	Subnet      uint8
	Device      uint8
	Power       *bool
	TargetTemp  *int
	CurrentTemp *int
	Mode        *Mode
	Fan         *FanSpeed
	Type        PacketType
}

// DecodeStatus parses an inbound raw packet into a StatusRecord, or
// returns nil for anything that is not an AC status broadcast: missing
// marker, unknown discriminant, or a length byte that disagrees with the
// packet. Malformed input never produces an error; the receive loop
// would be unusable if bus noise did.
func (s *Schema) DecodeStatus(raw []byte) *StatusRecord {
	_, frame, err := Split(raw)
	if err != nil {
		return nil
	}
	if len(frame) < MinFrameSize {
		return nil
	}

	ptype := PacketType(frame[2])
	layout, ok := statusLayouts[ptype]
	if !ok {
		return nil
	}
	if int(frame[2]) != 1+(len(frame)-headerSize) {
		return nil
	}

	data := frame[headerSize : len(frame)-crcSize]
	if len(data) < 2 {
		return nil
	}

	rec := &StatusRecord{
		Subnet: data[0],
		Device: data[1],
		Type:   ptype,
	}

	if layout.power >= 0 && layout.power < len(data) {
		var on bool
		if layout.onByEquals {
			on = data[layout.power] == onByte
		} else {
			on = data[layout.power] != offSentinel
		}
		rec.Power = &on
	}
	if v, ok := rangedField(data, layout.targetTemp, minDecodedSetpoint, maxDecodedSetpoint); ok {
		rec.TargetTemp = &v
	}
	if v, ok := rangedField(data, layout.currentTemp, minSensorTemp, maxSensorTemp); ok {
		rec.CurrentTemp = &v
	}
	if layout.mode >= 0 && layout.mode < len(data) {
		switch m := Mode(data[layout.mode]); m {
		case ModeCool, ModeFan, ModeDry:
			rec.Mode = &m
		}
	}
	if layout.fan >= 0 && layout.fan < len(data) {
		switch f := FanSpeed(data[layout.fan]); f {
		case FanAuto, FanHigh, FanMedium, FanLow:
			rec.Fan = &f
		}
	}

	return rec
}

// rangedField reads data[off] when the offset is valid and the value is
// within [lo, hi]; out-of-range values report absent, not zero.
func rangedField(data []byte, off, lo, hi int) (int, bool) {
	if off < 0 || off >= len(data) {
		return 0, false
	}
	v := int(data[off])
	if v < lo || v > hi {
		return 0, false
	}
	return v, true
}
