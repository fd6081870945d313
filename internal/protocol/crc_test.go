package protocol

import (
	"encoding/hex"
	"testing"
)

func TestCRC16KnownVectors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{
			name: "empty input",
			data: nil,
			want: 0x0000,
		},
		{
			name: "ascii check sequence",
			data: []byte("123456789"),
			want: 0x31C3,
		},
		{
			// Length byte + data area of a captured "off" command frame;
			// the gateway accepted the frame, so this value is known good.
			name: "captured off frame body",
			data: mustHex(t, "1001fb1234193a010d0000180000"),
			want: 0x1CF0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CRC16(tt.data); got != tt.want {
				t.Errorf("CRC16() = 0x%04X, want 0x%04X", got, tt.want)
			}
		})
	}
}

func TestCRCRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{0x00},
		{0x01, 0xFB, 0x12, 0x34},
		mustHex(t, "01fb1234193a010d0000180000"),
		make([]byte, 64),
	}

	for _, payload := range payloads {
		frame := buildTestFrame(payload)
		if err := Validate(frame); err != nil {
			t.Fatalf("Validate(round-tripped frame) = %v, want nil (payload %x)", err, payload)
		}

		// Flipping any single bit of the payload must break validation.
		for byteIdx := 0; byteIdx < len(payload); byteIdx++ {
			for bit := 0; bit < 8; bit++ {
				corrupted := make([]byte, len(frame))
				copy(corrupted, frame)
				corrupted[headerSize+byteIdx] ^= 1 << bit

				if err := Validate(corrupted); err == nil {
					t.Errorf("Validate() accepted frame with bit %d of payload byte %d flipped", bit, byteIdx)
				}
			}
		}
	}
}

// buildTestFrame assembles marker + length + payload + CRC the way the
// device does, using CRC16 directly.
func buildTestFrame(payload []byte) []byte {
	frame := make([]byte, headerSize+len(payload)+crcSize)
	frame[0] = MarkerByte
	frame[1] = MarkerByte
	copy(frame[headerSize:], payload)
	seal(frame)
	return frame
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex fixture %q: %v", s, err)
	}
	return b
}
