package reconcile

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hdlbus/acbridge/internal/logging"
	"github.com/hdlbus/acbridge/internal/protocol"
)

// DefaultSuppressionWindow is how long after a command we treat
// contradictory status broadcasts with suspicion. Units on the bus
// broadcast roughly every few seconds and apply commands within one
// cycle, so 2.5s covers one stale broadcast without masking real
// external changes for long.
const DefaultSuppressionWindow = 2500 * time.Millisecond

// State is the externally visible condition of one unit. CurrentTemp
// is the sensed room temperature; zero means it has not been reported
// yet.
type State struct {
	Power       bool
	TargetTemp  int
	CurrentTemp int
	Mode        protocol.Mode
	Fan         protocol.FanSpeed
}

// Options tune reconciliation behaviour.
type Options struct {
	// SuppressionWindow is the period after a command during which
	// status fields equal to the superseded state are discarded as
	// stale echoes. Zero selects DefaultSuppressionWindow.
	SuppressionWindow time.Duration

	// RemapUnexposedModes folds modes we do not surface (dry) into
	// cool, so callers only ever observe the modes they can set.
	RemapUnexposedModes bool
}

// DefaultOptions returns the tuning used when the config file does not
// override anything.
func DefaultOptions() Options {
	return Options{
		SuppressionWindow:   DefaultSuppressionWindow,
		RemapUnexposedModes: true,
	}
}

type fieldSet uint8

const (
	fieldPower fieldSet = 1 << iota
	fieldTemp
	fieldMode
	fieldFan
)

// pendingCommand tracks the one in-flight command whose echo we may
// still see on the bus.
type pendingCommand struct {
	issuedAt  time.Time
	prev      State
	target    State
	awaiting  fieldSet
	confirmed fieldSet
}

// Reconciler arbitrates between optimistic local updates and status
// broadcasts for a single unit. All methods are safe for concurrent
// use; the notify callback is invoked without the internal lock held.
type Reconciler struct {
	addr   protocol.Address
	opts   Options
	notify func(State)

	mu      sync.Mutex
	visible State
	pending *pendingCommand
}

// New creates a reconciler for one unit. notify is called with the new
// visible state whenever it changes; it may be nil.
func New(addr protocol.Address, opts Options, notify func(State)) *Reconciler {
	if opts.SuppressionWindow <= 0 {
		opts.SuppressionWindow = DefaultSuppressionWindow
	}
	return &Reconciler{
		addr:   addr,
		opts:   opts,
		notify: notify,
		visible: State{
			TargetTemp: 24,
			Mode:       protocol.ModeCool,
			Fan:        protocol.FanAuto,
		},
	}
}

// Addr returns the unit this reconciler tracks.
func (r *Reconciler) Addr() protocol.Address {
	return r.addr
}

// Current returns the visible state.
func (r *Reconciler) Current() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible
}

// OnCommandIssued applies a just-sent command optimistically and opens
// the echo suppression window. Status requests change nothing and open
// no window.
func (r *Reconciler) OnCommandIssued(intent protocol.Intent, now time.Time) {
	r.mu.Lock()

	if intent.Kind == protocol.StatusRequest {
		r.mu.Unlock()
		return
	}

	prev := r.visible
	awaiting := fieldPower

	switch intent.Kind {
	case protocol.PowerOff:
		// Power off keeps the setpoint so the next power on
		// restores it.
		r.visible.Power = false
	case protocol.PowerOn:
		r.visible.Power = true
		if intent.Temperature != nil {
			r.visible.TargetTemp = *intent.Temperature
			awaiting |= fieldTemp
		}
		if intent.Mode != nil {
			r.visible.Mode = r.exposedMode(*intent.Mode)
			awaiting |= fieldMode
		}
		if intent.Fan != nil {
			r.visible.Fan = *intent.Fan
			awaiting |= fieldFan
		}
	}

	r.pending = &pendingCommand{
		issuedAt: now,
		prev:     prev,
		target:   r.visible,
		awaiting: awaiting,
	}

	changed := r.visible != prev
	state := r.visible
	r.mu.Unlock()

	logging.Debug("command applied optimistically",
		zap.String("device", r.addr.String()),
		zap.String("intent", intent.Kind.String()),
		zap.Bool("changed", changed))

	if changed && r.notify != nil {
		r.notify(state)
	}
}

// OnStatusReceived merges a decoded status broadcast into the visible
// state. Within the suppression window each reported field is checked
// against the in-flight command: a value equal to the superseded state
// is a stale echo and is dropped, a value equal to the command target
// is a confirmation, and anything else is an independent change and
// wins. Outside the window the device report is authoritative.
func (r *Reconciler) OnStatusReceived(rec *protocol.StatusRecord, now time.Time) {
	if rec == nil {
		return
	}

	r.mu.Lock()
	changed := r.applyLocked(rec, now)
	state := r.visible
	r.mu.Unlock()

	if changed && r.notify != nil {
		r.notify(state)
	}
}

func (r *Reconciler) applyLocked(rec *protocol.StatusRecord, now time.Time) bool {
	if r.pending != nil && now.Sub(r.pending.issuedAt) >= r.opts.SuppressionWindow {
		r.pending = nil
	}
	inWindow := r.pending != nil

	changed := false
	dropped := fieldSet(0)

	// Power first: the setpoint gate below depends on the power
	// state after this report.
	if rec.Power != nil {
		switch {
		case inWindow && *rec.Power == r.pending.prev.Power && *rec.Power != r.pending.target.Power:
			dropped |= fieldPower
		default:
			if inWindow && *rec.Power == r.pending.target.Power {
				r.pending.confirmed |= fieldPower
			}
			if r.visible.Power != *rec.Power {
				r.visible.Power = *rec.Power
				changed = true
			}
		}
	}

	// Setpoints reported while the unit is off are retained firmware
	// state, not user intent; keep the last live setpoint instead.
	if rec.TargetTemp != nil && r.visible.Power {
		switch {
		case inWindow && *rec.TargetTemp == r.pending.prev.TargetTemp && *rec.TargetTemp != r.pending.target.TargetTemp:
			dropped |= fieldTemp
		default:
			if inWindow && *rec.TargetTemp == r.pending.target.TargetTemp {
				r.pending.confirmed |= fieldTemp
			}
			if r.visible.TargetTemp != *rec.TargetTemp {
				r.visible.TargetTemp = *rec.TargetTemp
				changed = true
			}
		}
	}

	if rec.Mode != nil {
		mode := r.exposedMode(*rec.Mode)
		switch {
		case inWindow && mode == r.pending.prev.Mode && mode != r.pending.target.Mode:
			dropped |= fieldMode
		default:
			if inWindow && mode == r.pending.target.Mode {
				r.pending.confirmed |= fieldMode
			}
			if r.visible.Mode != mode {
				r.visible.Mode = mode
				changed = true
			}
		}
	}

	if rec.Fan != nil {
		switch {
		case inWindow && *rec.Fan == r.pending.prev.Fan && *rec.Fan != r.pending.target.Fan:
			dropped |= fieldFan
		default:
			if inWindow && *rec.Fan == r.pending.target.Fan {
				r.pending.confirmed |= fieldFan
			}
			if r.visible.Fan != *rec.Fan {
				r.visible.Fan = *rec.Fan
				changed = true
			}
		}
	}

	// The room sensor is never command-targeted, so echo logic does
	// not apply to it.
	if rec.CurrentTemp != nil && r.visible.CurrentTemp != *rec.CurrentTemp {
		r.visible.CurrentTemp = *rec.CurrentTemp
		changed = true
	}

	if dropped != 0 {
		logging.Debug("discarded stale status echo",
			zap.String("device", r.addr.String()),
			zap.Uint8("fields", uint8(dropped)))
	}

	// Once every commanded field has been confirmed the device has
	// caught up and the window can close early.
	if r.pending != nil && r.pending.confirmed&r.pending.awaiting == r.pending.awaiting {
		r.pending = nil
	}

	return changed
}

func (r *Reconciler) exposedMode(m protocol.Mode) protocol.Mode {
	if r.opts.RemapUnexposedModes && m == protocol.ModeDry {
		return protocol.ModeCool
	}
	return m
}
