// Package broadcast fans out power-state changes and vendor events to
// registered subscribers, with per-subscriber binary event filtering.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/Dreams-Lp/platform-packages-apps-Bluetooth/logger"
)

// PowerState is the coarse state of the underlying controller. Off, On and
// Powered are stable; Pending is transitional and produces no notification.
type PowerState int

const (
	PowerOff PowerState = iota
	PowerPending
	PowerOn
	PowerPowered
)

func (s PowerState) String() string {
	switch s {
	case PowerOff:
		return "off"
	case PowerPending:
		return "pending"
	case PowerOn:
		return "on"
	case PowerPowered:
		return "powered"
	default:
		return "unknown"
	}
}

// ready reports whether the state collapses to the Ready signal.
func (s PowerState) ready() bool {
	return s == PowerOn || s == PowerPowered
}

// stable reports whether the state is a resting state.
func (s PowerState) stable() bool {
	return s != PowerPending
}

// Subscriber receives collapsed state signals and vendor deliveries. Any
// returned error is treated as a dead subscriber and unregisters it; there
// are no retries.
type Subscriber interface {
	OnReady() error
	OnNotReady() error
	OnVendorCommandComplete(opcode uint16, params []byte) error
	OnVendorEvent(params []byte) error
}

// registration is the per-subscriber bookkeeping. The updated flag
// suppresses a deferred ready notification that a newer state change has
// superseded; hasSeenStable gates NotReady so a subscriber never sees a
// failure signal before its first stable observation.
type registration struct {
	sub           Subscriber
	updated       bool
	filterMask    []byte
	filterValue   []byte
	hasSeenStable bool
}

// Broadcaster maintains the subscriber list, the last known power state and
// a single dispatch goroutine that serializes deferred notifications with
// state broadcasts.
type Broadcaster struct {
	mu    sync.Mutex
	regs  []*registration
	state PowerState

	count        int32 // registered subscriber count, gates powerRequest
	powerRequest func(on bool)

	queue chan func()
	done  chan struct{}
	tag   string
}

// NewBroadcaster creates a broadcaster in the Off state. powerRequest is
// invoked on every zero-to-nonzero and nonzero-to-zero crossing of the
// registration count; nil disables the power gate.
func NewBroadcaster(powerRequest func(on bool)) *Broadcaster {
	b := &Broadcaster{
		state:        PowerOff,
		powerRequest: powerRequest,
		queue:        make(chan func(), 64),
		done:         make(chan struct{}),
		tag:          "Broadcast",
	}
	go b.dispatch()
	return b
}

// Close stops the dispatch goroutine after draining queued work.
func (b *Broadcaster) Close() {
	close(b.queue)
	<-b.done
}

func (b *Broadcaster) dispatch() {
	defer close(b.done)
	for fn := range b.queue {
		fn()
	}
}

// Register adds a subscriber with no filter set. If the last known state is
// already Ready, a deferred Ready notification is queued; it is discarded if
// a state change lands first.
func (b *Broadcaster) Register(sub Subscriber) {
	b.mu.Lock()
	reg := &registration{sub: sub}
	b.regs = append(b.regs, reg)
	wasReady := b.state.ready()
	b.mu.Unlock()

	if atomic.AddInt32(&b.count, 1) == 1 && b.powerRequest != nil {
		b.powerRequest(true)
	}

	if wasReady {
		b.queue <- func() { b.deferredReady(reg) }
	}
}

// deferredReady delivers the catch-up Ready unless a state change already
// superseded it (the broadcast for that change notified the subscriber, or
// will).
func (b *Broadcaster) deferredReady(reg *registration) {
	b.mu.Lock()
	if reg.updated || !b.registered(reg) {
		b.mu.Unlock()
		return
	}
	reg.hasSeenStable = true
	b.mu.Unlock()

	if err := reg.sub.OnReady(); err != nil {
		logger.Warn(b.tag, "ready delivery failed, dropping subscriber: %v", err)
		b.unregister(reg)
	}
}

// Unregister removes a subscriber.
func (b *Broadcaster) Unregister(sub Subscriber) {
	b.mu.Lock()
	var victim *registration
	for _, reg := range b.regs {
		if reg.sub == sub {
			victim = reg
			break
		}
	}
	b.mu.Unlock()
	if victim != nil {
		b.unregister(victim)
	}
}

func (b *Broadcaster) unregister(victim *registration) {
	b.mu.Lock()
	removed := false
	for i, reg := range b.regs {
		if reg == victim {
			b.regs = append(b.regs[:i], b.regs[i+1:]...)
			removed = true
			break
		}
	}
	b.mu.Unlock()

	if removed && atomic.AddInt32(&b.count, -1) == 0 && b.powerRequest != nil {
		b.powerRequest(false)
	}
}

func (b *Broadcaster) registered(reg *registration) bool {
	for _, r := range b.regs {
		if r == reg {
			return true
		}
	}
	return false
}

// SetFilter installs a subscriber's event filter. Mask and value are
// truncated to the shorter of the two and the value is pre-masked, so event
// matching reduces to direct comparison.
func (b *Broadcaster) SetFilter(sub Subscriber, mask, value []byte) {
	n := len(mask)
	if len(value) < n {
		n = len(value)
	}
	m := append([]byte(nil), mask[:n]...)
	v := append([]byte(nil), value[:n]...)
	for i := range v {
		v[i] &= m[i]
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, reg := range b.regs {
		if reg.sub == sub {
			reg.filterMask = m
			reg.filterValue = v
			return
		}
	}
}

// OnStateUpdate records a new power state and queues the broadcast. Pending
// is recorded but broadcasts nothing. Marking every registration updated
// here, before the broadcast is queued, is what invalidates any deferred
// Ready still waiting in the queue.
func (b *Broadcaster) OnStateUpdate(state PowerState) {
	b.mu.Lock()
	b.state = state
	for _, reg := range b.regs {
		reg.updated = true
	}
	b.mu.Unlock()

	if !state.stable() {
		return
	}
	b.queue <- func() { b.broadcastState(state) }
}

// broadcastState delivers the collapsed signal to the snapshot of current
// registrations, in registration order. A NotReady recipient is removed
// afterward; every subscriber present for a stable broadcast has then seen
// a stable state, notified or not.
func (b *Broadcaster) broadcastState(state PowerState) {
	b.mu.Lock()
	snapshot := append([]*registration(nil), b.regs...)
	b.mu.Unlock()

	for _, reg := range snapshot {
		b.mu.Lock()
		if !b.registered(reg) {
			b.mu.Unlock()
			continue
		}
		seenStable := reg.hasSeenStable
		reg.hasSeenStable = true
		b.mu.Unlock()

		switch {
		case state.ready():
			if err := reg.sub.OnReady(); err != nil {
				logger.Warn(b.tag, "ready delivery failed, dropping subscriber: %v", err)
				b.unregister(reg)
			}
		case seenStable:
			if err := reg.sub.OnNotReady(); err != nil {
				logger.Warn(b.tag, "not-ready delivery failed: %v", err)
			}
			b.unregister(reg)
		}
	}
}

// VendorCommandComplete delivers a command completion to every subscriber.
func (b *Broadcaster) VendorCommandComplete(opcode uint16, params []byte) {
	b.mu.Lock()
	snapshot := append([]*registration(nil), b.regs...)
	b.mu.Unlock()

	for _, reg := range snapshot {
		if err := reg.sub.OnVendorCommandComplete(opcode, params); err != nil {
			logger.Warn(b.tag, "command complete delivery failed, dropping subscriber: %v", err)
			b.unregister(reg)
		}
	}
}

// VendorEvent delivers an event to each subscriber whose filter matches.
// No filter means no delivery; a payload shorter than the mask never
// matches.
func (b *Broadcaster) VendorEvent(params []byte) {
	b.mu.Lock()
	snapshot := append([]*registration(nil), b.regs...)
	b.mu.Unlock()

	for _, reg := range snapshot {
		b.mu.Lock()
		match := reg.matches(params)
		b.mu.Unlock()
		if !match {
			continue
		}
		if err := reg.sub.OnVendorEvent(params); err != nil {
			logger.Warn(b.tag, "event delivery failed, dropping subscriber: %v", err)
			b.unregister(reg)
		}
	}
}

func (reg *registration) matches(params []byte) bool {
	if reg.filterMask == nil {
		return false
	}
	if len(params) < len(reg.filterMask) {
		return false
	}
	for i := range reg.filterMask {
		if params[i]&reg.filterMask[i] != reg.filterValue[i] {
			return false
		}
	}
	return true
}
