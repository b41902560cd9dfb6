package main

import "testing"

func feedN(m *silenceMonitor, speech, toggle bool, n int) SilenceEvent {
	var last SilenceEvent
	for i := 0; i < n; i++ {
		last = m.Tick(speech, toggle)
	}
	return last
}

func TestSilenceWarnAfter8s(t *testing.T) {
	m := newSilenceMonitor()
	// 79 ticks of silence, no warning yet
	for i := 0; i < 79; i++ {
		if ev := m.Tick(false, false); ev != SilenceNone {
			t.Fatalf("unexpected event at tick %d: %d", i, ev)
		}
	}
	// 80th tick triggers warning (8s)
	if ev := m.Tick(false, false); ev != SilenceWarn {
		t.Fatalf("expected SilenceWarn at tick 80, got %d", ev)
	}
}

func TestSilenceWarnClearsOnSpeech(t *testing.T) {
	m := newSilenceMonitor()
	feedN(m, false, false, 80) // triggers warn

	// Sustained speech clears warning (need 25% of 80-tick window)
	for i := 0; i < 80; i++ {
		if ev := m.Tick(true, false); ev == SilenceWarnClear {
			return
		}
	}
	t.Fatal("expected SilenceWarnClear after speech")
}

func TestNoWarnDuringSpeech(t *testing.T) {
	m := newSilenceMonitor()
	for i := 0; i < 200; i++ {
		if ev := m.Tick(true, false); ev == SilenceWarn {
			t.Fatalf("unexpected warn during speech at tick %d", i)
		}
	}
}

func TestToggleRepeatBeep(t *testing.T) {
	m := newSilenceMonitor()
	feedN(m, false, true, 80) // warn at tick 80
	var gotRepeat bool
	for i := 0; i < 100; i++ {
		if ev := m.Tick(false, true); ev == SilenceRepeat {
			gotRepeat = true
			break
		}
	}
	if !gotRepeat {
		t.Fatal("expected SilenceRepeat in toggle mode")
	}
}

func TestToggleAutoClose(t *testing.T) {
	m := newSilenceMonitor()
	var gotClose bool
	for i := 0; i < 400; i++ {
		if ev := m.Tick(false, true); ev == SilenceAutoClose {
			gotClose = true
			break
		}
	}
	if !gotClose {
		t.Fatal("expected SilenceAutoClose after 300 ticks")
	}
}

func TestNoAutoCloseWhileHeld(t *testing.T) {
	m := newSilenceMonitor()
	for i := 0; i < 400; i++ {
		if ev := m.Tick(false, false); ev == SilenceAutoClose {
			t.Fatalf("unexpected auto-close for a held session at tick %d", i)
		}
	}
}

func TestAutoClosePreventedBySpeech(t *testing.T) {
	m := newSilenceMonitor()
	for i := 0; i < 500; i++ {
		speech := i%10 < 7
		if ev := m.Tick(speech, true); ev == SilenceAutoClose {
			t.Fatalf("unexpected auto-close with speech at tick %d", i)
		}
	}
}

func TestWarnOnlyOnce(t *testing.T) {
	m := newSilenceMonitor()
	warns := 0
	for i := 0; i < 300; i++ {
		if ev := m.Tick(false, false); ev == SilenceWarn {
			warns++
		}
	}
	if warns != 1 {
		t.Fatalf("expected exactly 1 SilenceWarn, got %d", warns)
	}
}

func TestWarnStaysDuringNoise(t *testing.T) {
	m := newSilenceMonitor()
	feedN(m, false, false, 80) // triggers warn

	// Occasional VAD false positives (< 25% speech) should not clear
	for i := 0; i < 80; i++ {
		speech := i%10 == 0
		if ev := m.Tick(speech, false); ev == SilenceWarnClear {
			t.Fatalf("warning cleared by noise at tick %d", i)
		}
	}
}
