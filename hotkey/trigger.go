package hotkey

import (
	"time"

	"mutter/log"
)

type Kind int

const (
	// Start arms a new session. The session begins as a hold; if the key is
	// released before the long-press threshold it becomes a toggle.
	Start Kind = iota
	// Toggled reports that the armed session resolved to toggle semantics.
	Toggled
	// Stop ends the session: hold fully released, or toggle pressed again.
	Stop
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case Toggled:
		return "toggled"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind Kind
}

const (
	defaultLongPress = 350 * time.Millisecond
	pressDebounce    = 150 * time.Millisecond

	// How long emit waits on a stalled consumer before giving an event up.
	// Losing a Stop leaves a session recording until silence auto-close, so
	// this errs on the patient side.
	emitTimeout = 2 * time.Second
)

// Trigger merges key events from all registered sources through a
// HoldTracker and emits Start/Toggled/Stop events.
type Trigger struct {
	sources   []Hotkey
	tracker   *HoldTracker
	longPress time.Duration
	debounce  time.Duration

	events chan Event
	keys   chan keyEvent
	quit   chan struct{}
}

type keyEvent struct {
	source string
	down   bool
}

func NewTrigger(longPress time.Duration, sources ...Hotkey) *Trigger {
	if longPress <= 0 {
		longPress = defaultLongPress
	}
	return &Trigger{
		sources:   sources,
		tracker:   NewHoldTracker(),
		longPress: longPress,
		debounce:  pressDebounce,
		events:    make(chan Event, 4),
		keys:      make(chan keyEvent, 16),
		quit:      make(chan struct{}),
	}
}

func (t *Trigger) Events() <-chan Event { return t.events }

// Register installs all sources and starts the resolver. At least one source
// must register successfully.
func (t *Trigger) Register() error {
	var registered []Hotkey
	var lastErr error
	for _, src := range t.sources {
		if err := src.Register(); err != nil {
			lastErr = err
			continue
		}
		registered = append(registered, src)
		go t.relay(src)
	}
	if len(registered) == 0 {
		return lastErr
	}
	t.sources = registered
	go t.run()
	return nil
}

func (t *Trigger) Unregister() {
	close(t.quit)
	for _, src := range t.sources {
		src.Unregister()
	}
}

func (t *Trigger) relay(src Hotkey) {
	id := src.SourceID()
	for {
		select {
		case <-t.quit:
			return
		case <-src.Keydown():
			select {
			case t.keys <- keyEvent{source: id, down: true}:
			case <-t.quit:
				return
			}
		case <-src.Keyup():
			select {
			case t.keys <- keyEvent{source: id, down: false}:
			case <-t.quit:
				return
			}
		}
	}
}

type triggerState int

const (
	stIdle triggerState = iota
	stArmed
	stToggled
	stStopping
)

func (t *Trigger) run() {
	state := stIdle
	var longTimer *time.Timer
	var longC <-chan time.Time
	lastPress := make(map[string]time.Time)

	stopLongTimer := func() {
		if longTimer != nil {
			longTimer.Stop()
			longTimer = nil
			longC = nil
		}
	}

	for {
		select {
		case <-t.quit:
			stopLongTimer()
			return

		case <-longC:
			stopLongTimer()
			if state == stArmed {
				t.tracker.MarkHold()
			}

		case ev := <-t.keys:
			if ev.down {
				// Spurious double-fire suppression; repeats of a held key are
				// already absorbed by the tracker's idempotent Press.
				if last, ok := lastPress[ev.source]; ok &&
					time.Since(last) < t.debounce && !t.tracker.Active(ev.source) {
					continue
				}
				lastPress[ev.source] = time.Now()

				begin := t.tracker.Press(ev.source)
				switch state {
				case stIdle:
					if begin {
						state = stArmed
						longTimer = time.NewTimer(t.longPress)
						longC = longTimer.C
						t.emit(Event{Kind: Start})
					}
				case stToggled:
					if begin {
						state = stStopping
					}
				}
			} else {
				holdEnded := t.tracker.Release(ev.source)
				switch state {
				case stArmed:
					if holdEnded {
						stopLongTimer()
						state = stIdle
						t.tracker.Reset()
						t.emit(Event{Kind: Stop})
					} else if t.tracker.Empty() {
						// Released before the long-press threshold: toggle.
						stopLongTimer()
						state = stToggled
						t.emit(Event{Kind: Toggled})
					}
				case stStopping:
					if t.tracker.Empty() {
						state = stIdle
						t.tracker.Reset()
						t.emit(Event{Kind: Stop})
					}
				}
			}
		}
	}
}

func (t *Trigger) emit(ev Event) {
	select {
	case t.events <- ev:
		return
	default:
	}
	timer := time.NewTimer(emitTimeout)
	defer timer.Stop()
	select {
	case t.events <- ev:
	case <-timer.C:
		log.Warnf("hotkey event buffer full, dropping %s", ev.Kind)
	case <-t.quit:
	}
}
