package hotkey

import (
	"testing"
	"time"
)

func newTestTrigger(t *testing.T, longPress time.Duration, sources ...*FakeHotkey) *Trigger {
	t.Helper()
	hks := make([]Hotkey, len(sources))
	for i, s := range sources {
		hks[i] = s
	}
	tr := NewTrigger(longPress, hks...)
	tr.debounce = 0 // tests fire events faster than a human can
	if err := tr.Register(); err != nil {
		t.Fatalf("register: %v", err)
	}
	t.Cleanup(tr.Unregister)
	return tr
}

func waitEvent(t *testing.T, tr *Trigger, want Kind) {
	t.Helper()
	for {
		select {
		case ev := <-tr.Events():
			if ev.Kind == want {
				return
			}
			t.Fatalf("expected event %d, got %d", want, ev.Kind)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", want)
		}
	}
}

func expectNoEvent(t *testing.T, tr *Trigger, within time.Duration) {
	t.Helper()
	select {
	case ev := <-tr.Events():
		t.Fatalf("unexpected event %d", ev.Kind)
	case <-time.After(within):
	}
}

func TestLongPressIsHold(t *testing.T) {
	fk := NewFake("system")
	threshold := 50 * time.Millisecond
	tr := newTestTrigger(t, threshold, fk)

	fk.SimKeydown()
	waitEvent(t, tr, Start)

	time.Sleep(threshold + 20*time.Millisecond)
	fk.SimKeyup()
	waitEvent(t, tr, Stop)
}

func TestShortTapIsToggle(t *testing.T) {
	fk := NewFake("system")
	tr := newTestTrigger(t, 200*time.Millisecond, fk)

	fk.SimKeydown()
	waitEvent(t, tr, Start)
	fk.SimKeyup()
	waitEvent(t, tr, Toggled)

	expectNoEvent(t, tr, 50*time.Millisecond)

	// Second press+release stops the toggle session.
	fk.SimKeydown()
	fk.SimKeyup()
	waitEvent(t, tr, Stop)
}

func TestDualSourceHoldStopsOnLastRelease(t *testing.T) {
	sys := NewFake("system")
	hook := NewFake("hook")
	threshold := 50 * time.Millisecond
	tr := newTestTrigger(t, threshold, sys, hook)

	sys.SimKeydown()
	waitEvent(t, tr, Start)
	hook.SimKeydown() // same physical key seen by the second backend

	time.Sleep(threshold + 20*time.Millisecond)

	sys.SimKeyup()
	expectNoEvent(t, tr, 50*time.Millisecond)

	hook.SimKeyup()
	waitEvent(t, tr, Stop)
}

func TestKeyRepeatDoesNotRestart(t *testing.T) {
	fk := NewFake("system")
	threshold := 50 * time.Millisecond
	tr := newTestTrigger(t, threshold, fk)

	fk.SimKeydown()
	waitEvent(t, tr, Start)
	fk.SimKeydown() // OS auto-repeat
	fk.SimKeydown()
	expectNoEvent(t, tr, 30*time.Millisecond)

	time.Sleep(threshold)
	fk.SimKeyup()
	waitEvent(t, tr, Stop)
}

func TestEmitWaitsOutFullBuffer(t *testing.T) {
	tr := NewTrigger(0)

	for i := 0; i < cap(tr.events); i++ {
		tr.emit(Event{Kind: Start})
	}

	delivered := make(chan struct{})
	go func() {
		tr.emit(Event{Kind: Stop})
		close(delivered)
	}()

	time.Sleep(20 * time.Millisecond)
	<-tr.Events() // consumer catches up

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("emit gave up instead of waiting for the consumer")
	}

	var last Event
	for i := 0; i < cap(tr.events); i++ {
		last = <-tr.Events()
	}
	if last.Kind != Stop {
		t.Fatalf("last event = %s, want stop", last.Kind)
	}
}

func TestMultipleCycles(t *testing.T) {
	fk := NewFake("system")
	threshold := 50 * time.Millisecond
	tr := newTestTrigger(t, threshold, fk)

	// Cycle 1: hold
	fk.SimKeydown()
	waitEvent(t, tr, Start)
	time.Sleep(threshold + 20*time.Millisecond)
	fk.SimKeyup()
	waitEvent(t, tr, Stop)

	// Cycle 2: toggle
	fk.SimKeydown()
	waitEvent(t, tr, Start)
	fk.SimKeyup()
	waitEvent(t, tr, Toggled)
	fk.SimKeydown()
	fk.SimKeyup()
	waitEvent(t, tr, Stop)

	// Cycle 3: hold again
	fk.SimKeydown()
	waitEvent(t, tr, Start)
	time.Sleep(threshold + 20*time.Millisecond)
	fk.SimKeyup()
	waitEvent(t, tr, Stop)
}
