package protocol

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Template names recognized by Discover. The "on for a second device"
// template is any key of the form "on_<subnet>.<device>".
const (
	TemplateOff       = "off"
	TemplateOn        = "on"
	TemplateCool      = "cool_23c"
	TemplateFanMode   = "fan_24c"
	TemplateStatusReq = "status_request"

	templateOnPrefix = "on_"
)

// SchemaError reports a missing or invalid reference template. It is
// fatal to startup: no schema is produced if any template fails.
type SchemaError struct {
	Template string
	Err      error
}

func (e *SchemaError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("schema: template %q invalid", e.Template)
	}
	return fmt.Sprintf("schema: template %q: %v", e.Template, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Schema is the immutable result of protocol discovery: the reference
// frames plus every byte offset needed to build and parse frames for the
// device family. Offsets are relative to the frame data area.
type Schema struct {
	// Prefix holds the opaque bytes preceding the frame marker in the
	// reference captures; it is echoed verbatim on every outbound packet.
	Prefix []byte

	// Reference frames, each individually validated.
	OffFrame       []byte
	OnFrame        []byte
	RichOnFrame    []byte // on with temperature+mode, nil if not captured
	StatusReqFrame []byte // nil if not captured

	// AddressOffsets are the raw candidate offsets found by diffing the
	// two "on" templates, sorted ascending.
	AddressOffsets []int
	// SubnetOffset and DeviceOffset are where the builder writes the
	// target address. The diff only exposes the device byte (both "on"
	// templates share a subnet); the subnet byte immediately precedes it.
	SubnetOffset int
	DeviceOffset int

	// OpcodeOffset is the first offset that differs between off and on.
	OpcodeOffset int

	// TemperatureOffset and ModeOffset are -1 when the exemplar pair was
	// not supplied.
	TemperatureOffset int
	ModeOffset        int

	// FanOffset is the fixed fan-speed offset (see FanSpeedOffset).
	FanOffset int
}

// HasStatusRequest reports whether the schema can synthesize a
// status-request frame.
func (s *Schema) HasStatusRequest() bool { return s.StatusReqFrame != nil }

// Discover infers the protocol schema from a set of named hex-encoded
// reference packets. Required keys: "off", "on" and one "on_<addr>"
// template for a different device. Optional: the cool_23c/fan_24c
// exemplar pair (which must differ by exactly one degree and one mode
// step) and a status_request template.
//
// Every template is validated (marker, length, CRC) before any offset is
// trusted; failure aborts discovery naming the offending template.
func Discover(templates map[string]string) (*Schema, error) {
	for _, required := range []string{TemplateOff, TemplateOn} {
		if _, ok := templates[required]; !ok {
			return nil, &SchemaError{Template: required, Err: fmt.Errorf("missing required template")}
		}
	}
	secondOn, err := findSecondOnTemplate(templates)
	if err != nil {
		return nil, err
	}

	prefix, offFrame, err := decodeTemplate(TemplateOff, templates[TemplateOff])
	if err != nil {
		return nil, err
	}
	_, onFrame, err := decodeTemplate(TemplateOn, templates[TemplateOn])
	if err != nil {
		return nil, err
	}
	_, secondOnFrame, err := decodeTemplate(secondOn, templates[secondOn])
	if err != nil {
		return nil, err
	}

	schema := &Schema{
		Prefix:            prefix,
		OffFrame:          offFrame,
		OnFrame:           onFrame,
		TemperatureOffset: -1,
		ModeOffset:        -1,
		FanOffset:         FanSpeedOffset,
	}

	// Off vs on: same device, different power state. Every differing
	// offset is an opcode candidate.
	opcodes := diffOffsets(DataArea(offFrame), DataArea(onFrame))
	if len(opcodes) == 0 {
		return nil, &SchemaError{
			Template: TemplateOn,
			Err:      fmt.Errorf("no opcode offsets: off and on data areas are identical"),
		}
	}
	schema.OpcodeOffset = opcodes[0]

	// On vs on-for-second-device: same power state, different address.
	addrs := diffOffsets(DataArea(onFrame), DataArea(secondOnFrame))
	if len(addrs) == 0 {
		return nil, &SchemaError{
			Template: secondOn,
			Err:      fmt.Errorf("no address offsets: %s and %s data areas are identical", TemplateOn, secondOn),
		}
	}
	schema.AddressOffsets = addrs
	schema.DeviceOffset = addrs[0]
	schema.SubnetOffset = addrs[0] - 1

	if err := discoverTemperatureAndMode(templates, schema); err != nil {
		return nil, err
	}

	if raw, ok := templates[TemplateStatusReq]; ok {
		_, frame, err := decodeTemplate(TemplateStatusReq, raw)
		if err != nil {
			return nil, err
		}
		schema.StatusReqFrame = frame
	}

	return schema, nil
}

// discoverTemperatureAndMode diffs the exemplar pair, if supplied. The
// exemplars step temperature by 1 and mode by 2, so the numeric delta at
// each differing offset tells the fields apart. This heuristic depends
// on the reference captures stepping the two fields by different
// amounts; it does not generalize beyond that.
func discoverTemperatureAndMode(templates map[string]string, schema *Schema) error {
	coolRaw, haveCool := templates[TemplateCool]
	fanRaw, haveFan := templates[TemplateFanMode]
	if !haveCool || !haveFan {
		return nil
	}

	_, coolFrame, err := decodeTemplate(TemplateCool, coolRaw)
	if err != nil {
		return err
	}
	_, fanFrame, err := decodeTemplate(TemplateFanMode, fanRaw)
	if err != nil {
		return err
	}

	coolData := DataArea(coolFrame)
	fanData := DataArea(fanFrame)
	for _, off := range diffOffsets(coolData, fanData) {
		switch int(fanData[off]) - int(coolData[off]) {
		case 1:
			schema.TemperatureOffset = off
		case 2:
			schema.ModeOffset = off
		}
	}

	schema.RichOnFrame = coolFrame
	return nil
}

// findSecondOnTemplate locates the single "on_<addr>" key. Exactly one
// is required: the address diff is only meaningful against one second
// device, and silently choosing among several would mask a capture
// mistake.
func findSecondOnTemplate(templates map[string]string) (string, error) {
	var candidates []string
	for name := range templates {
		if strings.HasPrefix(name, templateOnPrefix) {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return "", &SchemaError{
			Template: templateOnPrefix + "<addr>",
			Err:      fmt.Errorf("missing required template for a second device"),
		}
	}
	if len(candidates) > 1 {
		sort.Strings(candidates)
		return "", &SchemaError{
			Template: templateOnPrefix + "<addr>",
			Err:      fmt.Errorf("ambiguous second-device templates: %s", strings.Join(candidates, ", ")),
		}
	}
	return candidates[0], nil
}

// decodeTemplate turns a hex string into a validated (prefix, frame)
// pair. Whitespace and separators in the hex are tolerated.
func decodeTemplate(name, raw string) (prefix, frame []byte, err error) {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return r
		}
		return -1
	}, raw)

	packet, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, nil, &SchemaError{Template: name, Err: fmt.Errorf("invalid hex: %w", err)}
	}

	prefix, frame, err = Split(packet)
	if err != nil {
		return nil, nil, &SchemaError{Template: name, Err: err}
	}
	if err := Validate(frame); err != nil {
		return nil, nil, &SchemaError{Template: name, Err: err}
	}
	return prefix, frame, nil
}

// diffOffsets returns every offset at which the two byte slices differ,
// over their common length, ascending.
func diffOffsets(a, b []byte) []int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var offsets []int
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			offsets = append(offsets, i)
		}
	}
	return offsets
}
