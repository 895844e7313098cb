package broadcast

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// recordingSubscriber counts deliveries and can be told to fail them.
type recordingSubscriber struct {
	mu       sync.Mutex
	ready    int
	notReady int
	events   [][]byte
	complete int
	fail     bool
}

func (r *recordingSubscriber) err() error {
	if r.fail {
		return errors.New("delivery refused")
	}
	return nil
}

func (r *recordingSubscriber) OnReady() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready++
	return r.err()
}

func (r *recordingSubscriber) OnNotReady() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notReady++
	return r.err()
}

func (r *recordingSubscriber) OnVendorCommandComplete(opcode uint16, params []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.complete++
	return r.err()
}

func (r *recordingSubscriber) OnVendorEvent(params []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, append([]byte(nil), params...))
	return r.err()
}

func (r *recordingSubscriber) counts() (ready, notReady, events int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready, r.notReady, len(r.events)
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// settle pushes a marker through the dispatch queue so everything queued
// before it has run.
func settle(b *Broadcaster) {
	done := make(chan struct{})
	b.queue <- func() { close(done) }
	<-done
}

func TestEventFiltering(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	sub := &recordingSubscriber{}
	b.Register(sub)

	// No filter set: everything is dropped.
	b.VendorEvent([]byte{0x10, 0x02, 0x00})
	if _, _, n := sub.counts(); n != 0 {
		t.Fatalf("unfiltered subscriber received %d events, want 0", n)
	}

	b.SetFilter(sub, []byte{0xFF, 0x0F}, []byte{0x10, 0x02})

	tests := []struct {
		payload []byte
		match   bool
	}{
		{[]byte{0x10, 0x02, 0x00}, true},
		{[]byte{0x10, 0x12, 0x00}, true}, // high nibble masked off by 0x0F
		{[]byte{0x11, 0x02, 0x00}, false},
		{[]byte{0x10, 0x03, 0x00}, false},
		{[]byte{0x10}, false}, // shorter than the mask never matches
		{[]byte{0x10, 0x02}, true},
	}
	want := 0
	for _, tt := range tests {
		b.VendorEvent(tt.payload)
		if tt.match {
			want++
		}
		if _, _, n := sub.counts(); n != want {
			t.Errorf("after payload % X: %d events delivered, want %d", tt.payload, n, want)
		}
	}
}

func TestSetFilterPreMasksValue(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	sub := &recordingSubscriber{}
	b.Register(sub)
	// Value bits outside the mask must be ignored at set time.
	b.SetFilter(sub, []byte{0x0F}, []byte{0xF2})

	b.VendorEvent([]byte{0x02})
	if _, _, n := sub.counts(); n != 1 {
		t.Errorf("pre-masked value did not match: %d events, want 1", n)
	}
}

func TestSetFilterTruncatesToShorter(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	sub := &recordingSubscriber{}
	b.Register(sub)
	b.SetFilter(sub, []byte{0xFF, 0xFF, 0xFF}, []byte{0x10})

	// Only the first byte participates after truncation.
	b.VendorEvent([]byte{0x10, 0x99})
	if _, _, n := sub.counts(); n != 1 {
		t.Errorf("truncated filter did not match: %d events, want 1", n)
	}
}

func TestPendingRegistrationSeesNoSpuriousSignal(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	b.OnStateUpdate(PowerPending)
	sub := &recordingSubscriber{}
	b.Register(sub)
	settle(b)

	if ready, notReady, _ := sub.counts(); ready != 0 || notReady != 0 {
		t.Fatalf("subscriber notified during pending: ready=%d notReady=%d", ready, notReady)
	}

	b.OnStateUpdate(PowerOn)
	waitFor(t, "ready delivery", func() bool { r, _, _ := sub.counts(); return r == 1 })

	b.OnStateUpdate(PowerOff)
	waitFor(t, "not-ready delivery", func() bool { _, nr, _ := sub.counts(); return nr == 1 })

	if ready, notReady, _ := sub.counts(); ready != 1 || notReady != 1 {
		t.Errorf("ready=%d notReady=%d, want exactly one of each", ready, notReady)
	}

	// NotReady unregisters: a later On delivers nothing.
	b.OnStateUpdate(PowerOn)
	settle(b)
	if ready, _, _ := sub.counts(); ready != 1 {
		t.Errorf("unregistered subscriber got another ready (total %d)", ready)
	}
}

func TestNotReadyRequiresPriorStableObservation(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	sub := &recordingSubscriber{}
	b.Register(sub)
	settle(b)

	// First stable state the subscriber lives through is Off: no failure
	// signal, but the observation counts.
	b.OnStateUpdate(PowerOff)
	settle(b)
	if _, notReady, _ := sub.counts(); notReady != 0 {
		t.Fatalf("not-ready before any stable observation (%d deliveries)", notReady)
	}

	b.OnStateUpdate(PowerOff)
	waitFor(t, "second off broadcast", func() bool { _, nr, _ := sub.counts(); return nr == 1 })
}

func TestDeferredReadyOnRegistration(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	b.OnStateUpdate(PowerPowered)
	settle(b)

	sub := &recordingSubscriber{}
	b.Register(sub)
	waitFor(t, "deferred ready", func() bool { r, _, _ := sub.counts(); return r == 1 })
}

func TestPowerGateZeroCrossings(t *testing.T) {
	var mu sync.Mutex
	var requests []bool
	b := NewBroadcaster(func(on bool) {
		mu.Lock()
		requests = append(requests, on)
		mu.Unlock()
	})
	defer b.Close()

	a, c := &recordingSubscriber{}, &recordingSubscriber{}
	b.Register(a)
	b.Register(c)
	b.Unregister(a)
	b.Unregister(c)
	b.Register(a)
	b.Unregister(a)

	mu.Lock()
	defer mu.Unlock()
	want := []bool{true, false, true, false}
	if len(requests) != len(want) {
		t.Fatalf("power requests %v, want %v", requests, want)
	}
	for i := range want {
		if requests[i] != want[i] {
			t.Fatalf("power requests %v, want %v", requests, want)
		}
	}
}

func TestFailedDeliveryUnregisters(t *testing.T) {
	released := make(chan bool, 4)
	b := NewBroadcaster(func(on bool) { released <- on })
	defer b.Close()

	sub := &recordingSubscriber{fail: true}
	b.Register(sub)
	<-released // acquire
	b.SetFilter(sub, []byte{0xFF}, []byte{0x01})

	b.VendorEvent([]byte{0x01})
	if on := <-released; on {
		t.Error("power gate not released after failed delivery")
	}

	// Dead subscriber: nothing further is delivered.
	b.VendorEvent([]byte{0x01})
	if _, _, n := sub.counts(); n != 1 {
		t.Errorf("%d deliveries to a dead subscriber, want 1", n)
	}
}

func TestVendorCommandComplete(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	a, c := &recordingSubscriber{}, &recordingSubscriber{}
	b.Register(a)
	b.Register(c)

	b.VendorCommandComplete(0xFC01, []byte{0x00})
	for i, sub := range []*recordingSubscriber{a, c} {
		sub.mu.Lock()
		n := sub.complete
		sub.mu.Unlock()
		if n != 1 {
			t.Errorf("subscriber %d received %d completions, want 1", i, n)
		}
	}
}
