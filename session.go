package main

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"mutter/transcriber"
)

type triggerKind int

const (
	kindHold triggerKind = iota
	kindToggle
)

func (k triggerKind) String() string {
	if k == kindToggle {
		return "toggle"
	}
	return "hold"
}

type providerMode int

const (
	modeBatch providerMode = iota
	modeStreaming
)

func (m providerMode) String() string {
	if m == modeStreaming {
		return "streaming"
	}
	return "batch"
}

// stopSignal is a cooperative, per-session cancellation token. The control
// thread sets it; workers only observe it between blocking operations.
type stopSignal struct {
	once sync.Once
	done chan struct{}
}

func newStopSignal() *stopSignal {
	return &stopSignal{done: make(chan struct{})}
}

func (s *stopSignal) Set() {
	s.once.Do(func() { close(s.done) })
}

func (s *stopSignal) Done() <-chan struct{} { return s.done }

func (s *stopSignal) Stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// session is the unit of work for one hotkey activation. It is replaced,
// never mutated in place, at each arm; only the control thread writes its
// fields after creation. Workers receive the values they need as arguments.
type session struct {
	id        string
	kind      triggerKind
	mode      providerMode
	startedAt time.Time

	stop    *stopSignal
	capture *captureWorker
	stream  transcriber.StreamSession // nil in batch mode

	// speech flips when a chunk's loudness first crosses vadThreshold.
	// Written only by the control thread, snapshotted before hand-off.
	speech  bool
	interim string
}

func newSession() *session {
	return &session{
		id:        uuid.NewString(),
		kind:      kindHold,
		startedAt: time.Now(),
		stop:      newStopSignal(),
	}
}
