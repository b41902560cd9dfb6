package hotkey

import "sync"

// HoldTracker resolves hold-to-talk press/release semantics across multiple
// input sources. Two backends may report the same physical key; a release
// from one must not end a gesture the other still considers held.
type HoldTracker struct {
	mu            sync.Mutex
	active        map[string]struct{}
	startedByHold bool
}

func NewHoldTracker() *HoldTracker {
	return &HoldTracker{active: make(map[string]struct{})}
}

// Press marks the source active. It returns true only when this press begins
// a new gesture (no source was active); duplicate presses from the same
// source (OS key-repeat) and presses from a second source joining an active
// gesture return false.
func (t *HoldTracker) Press(source string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.active[source]; ok {
		return false
	}
	begin := len(t.active) == 0
	t.active[source] = struct{}{}
	return begin
}

// Release removes the source. It returns true only when the active set
// becomes empty and the gesture was marked as a hold: only then may the
// release end the recording.
func (t *HoldTracker) Release(source string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, source)
	return len(t.active) == 0 && t.startedByHold
}

// MarkHold records that the current gesture is a hold (press outlived the
// long-press threshold).
func (t *HoldTracker) MarkHold() {
	t.mu.Lock()
	t.startedByHold = true
	t.mu.Unlock()
}

func (t *HoldTracker) Active(source string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[source]
	return ok
}

func (t *HoldTracker) Empty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active) == 0
}

func (t *HoldTracker) StartedByHold() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startedByHold
}

func (t *HoldTracker) Reset() {
	t.mu.Lock()
	t.active = make(map[string]struct{})
	t.startedByHold = false
	t.mu.Unlock()
}
