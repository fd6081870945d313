package protocol

import (
	"math/rand"
	"testing"
)

func TestDecodeStatus(t *testing.T) {
	schema := mustDiscover(t)

	tests := []struct {
		name   string
		raw    string
		verify func(t *testing.T, rec *StatusRecord)
	}{
		{
			name: "periodic broadcast reporting on",
			raw:  "c0a8016448444c4d495241434c45aaaa19010d1234193bffff01001800001a0000000000000000a309",
			verify: func(t *testing.T, rec *StatusRecord) {
				if rec.Type != PacketPeriodic {
					t.Errorf("Type = 0x%02X, want 0x%02X", rec.Type, PacketPeriodic)
				}
				if rec.Subnet != 1 || rec.Device != 13 {
					t.Errorf("address = %d.%d, want 1.13", rec.Subnet, rec.Device)
				}
				if rec.Power == nil || !*rec.Power {
					t.Error("Power should decode as on")
				}
				if rec.TargetTemp == nil || *rec.TargetTemp != 24 {
					t.Errorf("TargetTemp = %v, want 24", rec.TargetTemp)
				}
				if rec.CurrentTemp == nil || *rec.CurrentTemp != 26 {
					t.Errorf("CurrentTemp = %v, want 26", rec.CurrentTemp)
				}
				if rec.Mode == nil || *rec.Mode != ModeCool {
					t.Errorf("Mode = %v, want cool", rec.Mode)
				}
				if rec.Fan == nil || *rec.Fan != FanAuto {
					t.Errorf("Fan = %v, want auto", rec.Fan)
				}
			},
		},
		{
			name: "periodic broadcast reporting off sentinel",
			raw:  "c0a8016448444c4d495241434c45aaaa19010d1234193bffff00001800001a0000000000000000d868",
			verify: func(t *testing.T, rec *StatusRecord) {
				if rec.Power == nil || *rec.Power {
					t.Error("Power should decode as off")
				}
			},
		},
		{
			name: "extended broadcast shape",
			raw:  "c0a8016448444c4d495241434c45aaaa1b010d1234193cffff0001001702011b000000000000000000793a",
			verify: func(t *testing.T, rec *StatusRecord) {
				if rec.Type != PacketExtended {
					t.Errorf("Type = 0x%02X, want 0x%02X", rec.Type, PacketExtended)
				}
				if rec.Power == nil || !*rec.Power {
					t.Error("Power should decode as on")
				}
				if rec.TargetTemp == nil || *rec.TargetTemp != 23 {
					t.Errorf("TargetTemp = %v, want 23", rec.TargetTemp)
				}
				if rec.Mode == nil || *rec.Mode != ModeFan {
					t.Errorf("Mode = %v, want fan_only", rec.Mode)
				}
				if rec.Fan == nil || *rec.Fan != FanHigh {
					t.Errorf("Fan = %v, want high", rec.Fan)
				}
				if rec.CurrentTemp == nil || *rec.CurrentTemp != 27 {
					t.Errorf("CurrentTemp = %v, want 27", rec.CurrentTemp)
				}
			},
		},
		{
			name: "response shape decodes power by equality",
			raw:  "c0a8016448444c4d495241434c45aaaa21010d12341929ffff0000000000000001001904031c00000000000000000093c8",
			verify: func(t *testing.T, rec *StatusRecord) {
				if rec.Type != PacketResponse {
					t.Errorf("Type = 0x%02X, want 0x%02X", rec.Type, PacketResponse)
				}
				if rec.Power == nil || !*rec.Power {
					t.Error("Power should decode as on (exact ON byte)")
				}
				if rec.TargetTemp == nil || *rec.TargetTemp != 25 {
					t.Errorf("TargetTemp = %v, want 25", rec.TargetTemp)
				}
				if rec.Mode == nil || *rec.Mode != ModeDry {
					t.Errorf("Mode = %v, want dry", rec.Mode)
				}
				if rec.Fan == nil || *rec.Fan != FanLow {
					t.Errorf("Fan = %v, want low", rec.Fan)
				}
			},
		},
		{
			name: "out-of-range temperatures decode as absent",
			raw:  "aaaa19010d1234193bffff010050000060000000000000000021a2",
			verify: func(t *testing.T, rec *StatusRecord) {
				if rec.TargetTemp != nil {
					t.Errorf("TargetTemp = %v, want nil for value 0x50", rec.TargetTemp)
				}
				if rec.CurrentTemp != nil {
					t.Errorf("CurrentTemp = %v, want nil for value 0x60", rec.CurrentTemp)
				}
				if rec.Power == nil || !*rec.Power {
					t.Error("Power should still decode")
				}
			},
		},
		{
			name: "zero sensor byte is padding, not a reading",
			raw:  "aaaa19010d1234193bffff01001800000000000000000000001f6f",
			verify: func(t *testing.T, rec *StatusRecord) {
				if rec.CurrentTemp != nil {
					t.Errorf("CurrentTemp = %v, want nil for padding byte 0x00", rec.CurrentTemp)
				}
				if rec.TargetTemp == nil || *rec.TargetTemp != 24 {
					t.Errorf("TargetTemp = %v, want 24", rec.TargetTemp)
				}
			},
		},
		{
			name: "unrecognized mode and fan bytes decode as absent",
			raw:  "aaaa19010d1234193bffff01001807091a0000000000000000afba",
			verify: func(t *testing.T, rec *StatusRecord) {
				if rec.Mode != nil {
					t.Errorf("Mode = %v, want nil for byte 0x07", rec.Mode)
				}
				if rec.Fan != nil {
					t.Errorf("Fan = %v, want nil for byte 0x09", rec.Fan)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := schema.DecodeStatus(mustHex(t, tt.raw))
			if rec == nil {
				t.Fatal("DecodeStatus() = nil, want record")
			}
			tt.verify(t, rec)
		})
	}
}

func TestDecodeStatusRejects(t *testing.T) {
	schema := mustDiscover(t)

	periodic := mustHex(t, "aaaa19010d1234193bffff01001800001a0000000000000000a309")

	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "empty input", raw: nil},
		{name: "no marker", raw: []byte{0x01, 0x02, 0x03, 0x04}},
		{name: "marker only", raw: []byte{0xAA, 0xAA}},
		{name: "command frame has unknown discriminant", raw: mustHex(t, offFrameHex)},
		{name: "known discriminant but truncated", raw: periodic[:len(periodic)-4]},
		{name: "known discriminant with trailing garbage", raw: append(append([]byte{}, periodic...), 0x00, 0x00)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := schema.DecodeStatus(tt.raw); rec != nil {
				t.Errorf("DecodeStatus() = %+v, want nil", rec)
			}
		})
	}
}

// TestDecodeStatusNeverPanics feeds the decoder random byte strings of
// random length; anything without a marker and a recognized discriminant
// must come back nil, and nothing may panic.
func TestDecodeStatusNeverPanics(t *testing.T) {
	schema := mustDiscover(t)
	rng := rand.New(rand.NewSource(0x1D))

	for i := 0; i < 2000; i++ {
		raw := make([]byte, rng.Intn(64))
		rng.Read(raw)
		_ = schema.DecodeStatus(raw)
	}
}
