package gateway

import (
	"bytes"
	"context"
	"encoding/hex"
	"net"
	"testing"
	"time"

	"github.com/hdlbus/acbridge/internal/protocol"
	"github.com/hdlbus/acbridge/internal/reconcile"
)

const packetPrefixHex = "c0a8016448444c4d495241434c45"

// Captures from a real unit at 1.13 behind a gateway at 192.168.1.100.
var testTemplates = map[string]string{
	"off":            packetPrefixHex + "aaaa1001fb1234193a010d00001800001cf0",
	"on":             packetPrefixHex + "aaaa1001fb1234193a010d0100180000b6a1",
	"on_1.14":        packetPrefixHex + "aaaa1001fb1234193a010e01001800007841",
	"cool_23c":       packetPrefixHex + "aaaa1001fb1234193a010d01001700009a90",
	"fan_24c":        packetPrefixHex + "aaaa1001fb1234193a010d0100180200d0c3",
	"status_request": packetPrefixHex + "aaaa0d01fb12341928010d00001254",
}

const statusBroadcastHex = packetPrefixHex + "aaaa19010d1234193bffff01001800001a0000000000000000a309"

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex fixture: %v", err)
	}
	return b
}

func newTestSchema(t *testing.T) *protocol.Schema {
	t.Helper()
	schema, err := protocol.Discover(testTemplates)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	return schema
}

// newTestPair opens a fake gateway socket and a Gateway pointed at it.
func newTestPair(t *testing.T) (*Gateway, *net.UDPConn) {
	t.Helper()

	fake, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("bind fake gateway: %v", err)
	}
	t.Cleanup(func() { fake.Close() })

	g, err := New(newTestSchema(t), Config{GatewayAddr: fake.LocalAddr().String()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { g.Close() })

	return g, fake
}

func readPacket(t *testing.T, conn *net.UDPConn) []byte {
	t.Helper()
	buf := make([]byte, 2048)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read from fake gateway: %v", err)
	}
	return buf[:n]
}

func TestSendIntentWritesPrefixedFrame(t *testing.T) {
	g, fake := newTestPair(t)
	addr := protocol.Address{Subnet: 1, Device: 13}

	warnings, err := g.SendIntent(protocol.Intent{Kind: protocol.PowerOff}, addr)
	if err != nil {
		t.Fatalf("SendIntent() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}

	got := readPacket(t, fake)
	want := mustHex(t, testTemplates["off"])
	if !bytes.Equal(got, want) {
		t.Errorf("sent %x, want the power-off capture %x", got, want)
	}

	prefix := mustHex(t, packetPrefixHex)
	if err := protocol.Validate(got[len(prefix):]); err != nil {
		t.Errorf("sent frame fails validation: %v", err)
	}
}

func TestSendIntentRetargetsAddress(t *testing.T) {
	g, fake := newTestPair(t)

	if _, err := g.SendIntent(protocol.Intent{Kind: protocol.PowerOn}, protocol.Address{Subnet: 1, Device: 14}); err != nil {
		t.Fatalf("SendIntent() error = %v", err)
	}

	got := readPacket(t, fake)
	want := mustHex(t, testTemplates["on_1.14"])
	if !bytes.Equal(got, want) {
		t.Errorf("sent %x, want the 1.14 power-on capture %x", got, want)
	}
}

func TestSendIntentReportsWarnings(t *testing.T) {
	g, fake := newTestPair(t)
	temp := 99

	warnings, err := g.SendIntent(protocol.Intent{
		Kind:        protocol.PowerOn,
		Temperature: &temp,
	}, protocol.Address{Subnet: 1, Device: 13})
	if err != nil {
		t.Fatalf("SendIntent() error = %v", err)
	}
	if len(warnings) != 1 {
		t.Errorf("got %d warnings, want 1 for out-of-range setpoint", len(warnings))
	}

	// The frame still goes out with the requested value.
	got := readPacket(t, fake)
	if err := protocol.Validate(got[len(mustHex(t, packetPrefixHex)):]); err != nil {
		t.Errorf("sent frame fails validation: %v", err)
	}
}

func TestRequestStatus(t *testing.T) {
	g, fake := newTestPair(t)

	if err := g.RequestStatus(protocol.Address{Subnet: 1, Device: 13}); err != nil {
		t.Fatalf("RequestStatus() error = %v", err)
	}

	got := readPacket(t, fake)
	want := mustHex(t, testTemplates["status_request"])
	if !bytes.Equal(got, want) {
		t.Errorf("sent %x, want the status-request capture %x", got, want)
	}
}

func TestSendIntentUpdatesReconciler(t *testing.T) {
	g, _ := newTestPair(t)
	addr := protocol.Address{Subnet: 1, Device: 13}

	r := reconcile.New(addr, reconcile.DefaultOptions(), nil)
	g.Register(r)

	temp := 22
	if _, err := g.SendIntent(protocol.Intent{Kind: protocol.PowerOn, Temperature: &temp}, addr); err != nil {
		t.Fatalf("SendIntent() error = %v", err)
	}

	state := r.Current()
	if !state.Power || state.TargetTemp != 22 {
		t.Errorf("reconciler state = %+v, want optimistic power on at 22", state)
	}
}

func TestListenRoutesBroadcasts(t *testing.T) {
	g, fake := newTestPair(t)
	addr := protocol.Address{Subnet: 1, Device: 13}

	updates := make(chan reconcile.State, 4)
	r := reconcile.New(addr, reconcile.DefaultOptions(), func(s reconcile.State) {
		updates <- s
	})
	g.Register(r)

	tapped := make(chan protocol.Address, 4)
	g.SetTap(func(a protocol.Address, rec *protocol.StatusRecord) {
		tapped <- a
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- g.Listen(ctx) }()

	local := g.LocalAddr().(*net.UDPAddr)
	target := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: local.Port}

	// Noise first: must be ignored without killing the loop.
	if _, err := fake.WriteToUDP([]byte{0xde, 0xad, 0xbe, 0xef}, target); err != nil {
		t.Fatalf("write noise: %v", err)
	}
	if _, err := fake.WriteToUDP(mustHex(t, statusBroadcastHex), target); err != nil {
		t.Fatalf("write broadcast: %v", err)
	}

	select {
	case s := <-updates:
		if !s.Power || s.TargetTemp != 24 || s.CurrentTemp != 26 {
			t.Errorf("state = %+v, want on/24/26", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reconciler update within 2s")
	}

	select {
	case a := <-tapped:
		if a != addr {
			t.Errorf("tap saw %v, want %v", a, addr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tap not called within 2s")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Listen() returned %v after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not stop after cancel")
	}
}

func TestListenRawTapSeesEveryPacket(t *testing.T) {
	g, fake := newTestPair(t)

	packets := make(chan []byte, 4)
	g.SetRawTap(func(data []byte) {
		packets <- append([]byte{}, data...)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Listen(ctx)

	local := g.LocalAddr().(*net.UDPAddr)
	target := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: local.Port}

	noise := []byte{0xde, 0xad, 0xbe, 0xef}
	if _, err := fake.WriteToUDP(noise, target); err != nil {
		t.Fatalf("write noise: %v", err)
	}
	if _, err := fake.WriteToUDP(mustHex(t, statusBroadcastHex), target); err != nil {
		t.Fatalf("write broadcast: %v", err)
	}

	// Undecodable noise reaches the raw tap too.
	for _, want := range [][]byte{noise, mustHex(t, statusBroadcastHex)} {
		select {
		case got := <-packets:
			if !bytes.Equal(got, want) {
				t.Errorf("raw tap saw %x, want %x", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("raw tap not called within 2s")
		}
	}
}

func TestListenStopsOnClose(t *testing.T) {
	g, _ := newTestPair(t)

	done := make(chan error, 1)
	go func() { done <- g.Listen(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	g.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Listen() returned %v after close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not stop after close")
	}
}
