package hotkey

import "testing"

func TestPressBeginsGestureOnce(t *testing.T) {
	tr := NewHoldTracker()
	if !tr.Press("system") {
		t.Fatal("first press should begin a gesture")
	}
	if tr.Press("system") {
		t.Error("repeat press from same source should not begin a gesture")
	}
	if tr.Press("hook") {
		t.Error("second source joining should not begin a gesture")
	}
}

func TestReleaseRequiresEmptySetAndHold(t *testing.T) {
	tr := NewHoldTracker()
	tr.Press("system")
	tr.Press("hook")
	tr.MarkHold()

	if tr.Release("system") {
		t.Error("release should not stop while another source holds the key")
	}
	if !tr.Release("hook") {
		t.Error("last release of a hold gesture should stop")
	}
}

func TestReleaseWithoutHoldNeverStops(t *testing.T) {
	tr := NewHoldTracker()
	tr.Press("system")
	if tr.Release("system") {
		t.Error("release should not stop a gesture never marked as hold")
	}
}

func TestReleaseOfUnknownSource(t *testing.T) {
	tr := NewHoldTracker()
	tr.Press("system")
	tr.MarkHold()
	if tr.Release("hook") {
		t.Error("release from an inactive source should not stop")
	}
	if !tr.Release("system") {
		t.Error("release of the holding source should stop")
	}
}

func TestReset(t *testing.T) {
	tr := NewHoldTracker()
	tr.Press("system")
	tr.MarkHold()
	tr.Reset()
	if !tr.Empty() || tr.StartedByHold() {
		t.Error("reset should clear sources and hold flag")
	}
}
