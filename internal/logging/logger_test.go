package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestInitializeSilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.InfoLevel) {
		t.Error("logger should be silent when no level is configured")
	}
}

func TestWSMessageTypeName(t *testing.T) {
	tests := []struct {
		msgType int
		want    string
	}{
		{1, "text"},
		{2, "binary"},
		{8, "close"},
		{9, "ping"},
		{10, "pong"},
		{42, "unknown(42)"},
	}
	for _, tt := range tests {
		if got := wsMessageTypeName(tt.msgType); got != tt.want {
			t.Errorf("wsMessageTypeName(%d) = %q, want %q", tt.msgType, got, tt.want)
		}
	}
}

func TestLogWebSocketMessageHandlesAllTypes(t *testing.T) {
	// Must never panic, whatever the logger state or message type.
	logger = nil
	LogWebSocketMessage("127.0.0.1:1234", "sent", 1, []byte(`{"power":true}`))
	LogWebSocketMessage("127.0.0.1:1234", "received", 2, []byte{0xaa, 0xaa})
	LogWebSocketMessage("127.0.0.1:1234", "sent", 42, nil)
}

func TestHexDumpTruncates(t *testing.T) {
	long := make([]byte, 300)
	got := hexDump(long)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("hexDump of 300 bytes should be truncated, got %d chars", len(got))
	}
	if want := 256*2 + 3; len(got) != want {
		t.Errorf("hexDump length = %d, want %d", len(got), want)
	}
	if hexDump(nil) != "" {
		t.Error("hexDump(nil) should be empty")
	}
}

func TestASCIIDumpMasksUnprintable(t *testing.T) {
	got := asciiDump([]byte{'H', 'D', 'L', 0x00, 0xaa, '!'})
	if got != "HDL..!" {
		t.Errorf("asciiDump = %q, want %q", got, "HDL..!")
	}
}
