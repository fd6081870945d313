package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hdlbus/acbridge/internal/logging"
	"github.com/hdlbus/acbridge/internal/protocol"
	"github.com/hdlbus/acbridge/internal/reconcile"
)

// DefaultSendTimeout bounds a single UDP write. Sends are fire and
// forget, so this only guards against a wedged socket.
const DefaultSendTimeout = 2 * time.Second

// Config describes how to reach the bus.
type Config struct {
	// GatewayAddr is the "ip:port" of the RS485-to-UDP bridge.
	GatewayAddr string

	// ListenPort is the local UDP port bound for bus broadcasts.
	// Gateways broadcast to the same port they listen on, so this
	// normally matches the gateway port. Zero picks an ephemeral
	// port, which only sees direct replies.
	ListenPort int

	// SendTimeout bounds each write. Zero selects DefaultSendTimeout.
	SendTimeout time.Duration
}

// StatusTap observes every decoded status broadcast, including ones
// for units no reconciler tracks.
type StatusTap func(protocol.Address, *protocol.StatusRecord)

// RawTap observes every inbound UDP packet before decoding, decodable
// or not. The slice is only valid for the duration of the call.
type RawTap func([]byte)

// Gateway owns the UDP socket to the bus. It sends schema-built
// command frames and dispatches decoded status broadcasts to the
// per-unit reconcilers registered with it.
type Gateway struct {
	schema      *protocol.Schema
	conn        *net.UDPConn
	remote      *net.UDPAddr
	sendTimeout time.Duration

	mu          sync.Mutex
	reconcilers map[protocol.Address]*reconcile.Reconciler
	tap         StatusTap
	rawTap      RawTap
}

// New opens the UDP socket and resolves the gateway address. The
// caller must Close the gateway when done.
func New(schema *protocol.Schema, cfg Config) (*Gateway, error) {
	if schema == nil {
		return nil, errors.New("gateway: nil schema")
	}

	remote, err := net.ResolveUDPAddr("udp", cfg.GatewayAddr)
	if err != nil {
		return nil, fmt.Errorf("gateway: resolve %q: %w", cfg.GatewayAddr, err)
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: cfg.ListenPort})
	if err != nil {
		return nil, fmt.Errorf("gateway: bind port %d: %w", cfg.ListenPort, err)
	}

	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}

	logging.Info("gateway socket open",
		zap.String("gateway", remote.String()),
		zap.String("local", conn.LocalAddr().String()))

	return &Gateway{
		schema:      schema,
		conn:        conn,
		remote:      remote,
		sendTimeout: timeout,
		reconcilers: make(map[protocol.Address]*reconcile.Reconciler),
	}, nil
}

// Close releases the UDP socket. Any blocked Listen returns.
func (g *Gateway) Close() error {
	return g.conn.Close()
}

// Schema returns the frame schema the gateway builds and decodes with.
func (g *Gateway) Schema() *protocol.Schema {
	return g.schema
}

// LocalAddr returns the bound UDP address.
func (g *Gateway) LocalAddr() net.Addr {
	return g.conn.LocalAddr()
}

// Register adds a reconciler; broadcasts for its unit are routed to it.
// A second registration for the same address replaces the first.
func (g *Gateway) Register(r *reconcile.Reconciler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reconcilers[r.Addr()] = r
}

// Unregister stops routing broadcasts for addr.
func (g *Gateway) Unregister(addr protocol.Address) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.reconcilers, addr)
}

// Reconciler returns the registered reconciler for addr, or nil.
func (g *Gateway) Reconciler(addr protocol.Address) *reconcile.Reconciler {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reconcilers[addr]
}

// SetTap installs an observer for all decoded broadcasts. Pass nil to
// remove it.
func (g *Gateway) SetTap(tap StatusTap) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tap = tap
}

// SetRawTap installs an observer for all inbound packets, including
// undecodable bus noise. Pass nil to remove it.
func (g *Gateway) SetRawTap(tap RawTap) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rawTap = tap
}

// Send transmits a sealed frame to the gateway, prepending the UDP
// prefix learned from the captures.
func (g *Gateway) Send(frame []byte) error {
	payload := make([]byte, 0, len(g.schema.Prefix)+len(frame))
	payload = append(payload, g.schema.Prefix...)
	payload = append(payload, frame...)

	if err := g.conn.SetWriteDeadline(time.Now().Add(g.sendTimeout)); err != nil {
		return fmt.Errorf("gateway: set deadline: %w", err)
	}

	logging.LogRawBytes("udp packet sent", payload)

	if _, err := g.conn.WriteToUDP(payload, g.remote); err != nil {
		return fmt.Errorf("gateway: send: %w", err)
	}
	return nil
}

// SendIntent builds the frame for intent, transmits it, and applies
// the optimistic update to the unit's reconciler if one is registered.
// Out-of-range override warnings are logged and returned; the frame is
// still sent.
func (g *Gateway) SendIntent(intent protocol.Intent, addr protocol.Address) ([]string, error) {
	frame, warnings, err := g.schema.Build(intent, addr.Subnet, addr.Device)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		logging.Warn("command built with warning",
			zap.String("device", addr.String()),
			zap.String("warning", w))
	}

	if err := g.Send(frame); err != nil {
		return warnings, err
	}

	logging.Info("command sent",
		zap.String("device", addr.String()),
		zap.String("intent", intent.Kind.String()))

	if r := g.Reconciler(addr); r != nil {
		r.OnCommandIssued(intent, time.Now())
	}
	return warnings, nil
}

// RequestStatus asks the unit to broadcast its state. Requires the
// status_request capture.
func (g *Gateway) RequestStatus(addr protocol.Address) error {
	_, err := g.SendIntent(protocol.Intent{Kind: protocol.StatusRequest}, addr)
	return err
}

// Listen reads bus packets until ctx is cancelled or the socket is
// closed. Every decodable status broadcast is routed to the matching
// reconciler and to the tap; everything else is ignored.
func (g *Gateway) Listen(ctx context.Context) error {
	buf := make([]byte, 2048)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		// Short deadline so cancellation is noticed promptly.
		if err := g.conn.SetReadDeadline(time.Now().Add(250 * time.Millisecond)); err != nil {
			return fmt.Errorf("gateway: set deadline: %w", err)
		}

		n, _, err := g.conn.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("gateway: read: %w", err)
		}

		g.handlePacket(buf[:n])
	}
}

func (g *Gateway) handlePacket(raw []byte) {
	logging.LogRawBytes("udp packet received", raw)

	g.mu.Lock()
	rawTap := g.rawTap
	g.mu.Unlock()
	if rawTap != nil {
		rawTap(raw)
	}

	rec := g.schema.DecodeStatus(raw)
	if rec == nil {
		return
	}
	addr := protocol.Address{Subnet: rec.Subnet, Device: rec.Device}

	logging.Debug("status broadcast decoded",
		zap.String("device", addr.String()),
		zap.String("type", fmt.Sprintf("0x%02x", byte(rec.Type))))

	g.mu.Lock()
	r := g.reconcilers[addr]
	tap := g.tap
	g.mu.Unlock()

	if r != nil {
		r.OnStatusReceived(rec, time.Now())
	}
	if tap != nil {
		tap(addr, rec)
	}
}
