package main

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"mutter/audio"
	"mutter/beep"
	"mutter/hotkey"
	"mutter/status"
	"mutter/transcriber"
)

func TestMain(m *testing.M) {
	beep.Disable()
	os.Exit(m.Run())
}

const (
	startKind   = hotkey.Start
	toggledKind = hotkey.Toggled
	stopKind    = hotkey.Stop
)

func triggerEvent(k hotkey.Kind) hotkey.Event { return hotkey.Event{Kind: k} }

type stubContext struct {
	mu   sync.Mutex
	last *audio.FakeCapture
}

func (s *stubContext) Devices() ([]audio.DeviceInfo, error) { return nil, nil }
func (s *stubContext) Close()                               {}

func (s *stubContext) NewCapture(_ *audio.DeviceInfo, _ audio.CaptureConfig) (audio.CaptureDevice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = audio.NewFakeCapture()
	return s.last, nil
}

func (s *stubContext) capture() *audio.FakeCapture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

type stubProvider struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (p *stubProvider) Name() string            { return "stub" }
func (p *stubProvider) SupportsStreaming() bool { return false }
func (p *stubProvider) RequiresFile() bool      { return false }

func (p *stubProvider) Transcribe(ctx context.Context, req transcriber.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.text, p.err
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type stubRefiner struct {
	out string
	err error
}

func (r *stubRefiner) Refine(ctx context.Context, text string) (string, error) {
	return r.out, r.err
}

type testRig struct {
	d           *daemon
	ctx         *stubContext
	provider    *stubProvider
	statusDir   string
	delivered   []string
	transitions []AppState
}

func newTestRig(t *testing.T, provider *stubProvider, refiner *stubRefiner) *testRig {
	t.Helper()
	statusDir := t.TempDir()
	br, err := status.New(statusDir)
	if err != nil {
		t.Fatal(err)
	}

	rig := &testRig{ctx: &stubContext{}, provider: provider, statusDir: statusDir}
	cfg := daemonConfig{
		Provider: provider,
		AudioCtx: rig.ctx,
		Status:   br,
	}
	if refiner != nil {
		cfg.Refiner = refiner
	}
	rig.d = newDaemon(cfg)
	rig.d.vad = nil // keep speech supervision out of state assertions
	rig.d.deliver = func(text string) error {
		rig.delivered = append(rig.delivered, text)
		return nil
	}
	rig.d.onTransition = func(_, to AppState) {
		rig.transitions = append(rig.transitions, to)
	}
	return rig
}

// waitState pumps the control tick until the daemon reaches want. The test
// goroutine plays the role of the control thread.
func (r *testRig) waitState(t *testing.T, want AppState) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		r.d.tick()
		if r.d.state == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", r.d.state, want)
}

func (r *testRig) sawBefore(a, b AppState) bool {
	ai, bi := -1, -1
	for i, s := range r.transitions {
		if s == a && ai == -1 {
			ai = i
		}
		if s == b && bi == -1 {
			bi = i
		}
	}
	return ai != -1 && bi != -1 && ai < bi
}

// pcmBlock builds a PCM16LE block of constant amplitude so its RMS lands at
// roughly amp.
func pcmBlock(amp float64, samples int) []byte {
	buf := make([]byte, samples*2)
	v := uint16(int16(amp * 32768))
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], v)
	}
	return buf
}

func TestLoudChunkPromotesListeningToRecording(t *testing.T) {
	rig := newTestRig(t, &stubProvider{}, nil)
	d := rig.d

	d.handleTrigger(triggerEvent(startKind))
	if d.state != StateListening {
		t.Fatalf("state after arm = %v, want Listening", d.state)
	}
	id := d.sess.id

	d.post(audioLevelMsg{session: id, level: 0.01})
	d.tick()
	if d.state != StateListening {
		t.Fatalf("state after quiet chunk = %v, want Listening", d.state)
	}

	d.post(audioLevelMsg{session: id, level: 0.06})
	d.tick()
	if d.state != StateRecording {
		t.Fatalf("state after loud chunk = %v, want Recording", d.state)
	}

	d.post(audioLevelMsg{session: id, level: 0.02})
	d.tick()
	if d.state != StateRecording {
		t.Fatalf("state after trailing chunk = %v, want Recording", d.state)
	}
}

func TestZeroChunkToggleSkipsProvider(t *testing.T) {
	rig := newTestRig(t, &stubProvider{text: "should never appear"}, nil)
	d := rig.d

	d.handleTrigger(triggerEvent(startKind))
	d.handleTrigger(triggerEvent(toggledKind))
	d.handleTrigger(triggerEvent(stopKind))
	if d.state != StateTranscribing {
		t.Fatalf("state after stop = %v, want Transcribing", d.state)
	}

	rig.waitState(t, StateDone)
	if got := rig.provider.callCount(); got != 0 {
		t.Fatalf("provider called %d times for an empty recording", got)
	}
	if len(rig.delivered) != 0 {
		t.Fatalf("delivered %q for an empty recording", rig.delivered)
	}
	if !rig.sawBefore(StateTranscribing, StateDone) {
		t.Fatalf("Done reached without passing Transcribing: %v", rig.transitions)
	}
}

func TestBelowThresholdSkipsProvider(t *testing.T) {
	rig := newTestRig(t, &stubProvider{text: "should never appear"}, nil)
	d := rig.d

	d.handleTrigger(triggerEvent(startKind))
	mic := rig.ctx.capture()
	for i := 0; i < 5; i++ {
		mic.Emit(pcmBlock(0.01, 320))
	}
	// Quiet chunks never promote past Listening.
	d.tick()
	if d.state != StateListening {
		t.Fatalf("state after quiet audio = %v, want Listening", d.state)
	}

	d.handleTrigger(triggerEvent(stopKind))
	rig.waitState(t, StateDone)
	if got := rig.provider.callCount(); got != 0 {
		t.Fatalf("provider called %d times for sub-threshold audio", got)
	}
	if len(rig.delivered) != 0 {
		t.Fatalf("delivered %q for sub-threshold audio", rig.delivered)
	}
}

func TestTranscriptIsDelivered(t *testing.T) {
	rig := newTestRig(t, &stubProvider{text: "hello world"}, nil)
	d := rig.d

	d.handleTrigger(triggerEvent(startKind))
	mic := rig.ctx.capture()
	mic.Emit(pcmBlock(0.06, 320))
	rig.waitState(t, StateRecording)

	d.handleTrigger(triggerEvent(stopKind))
	rig.waitState(t, StateDone)

	if got := rig.provider.callCount(); got != 1 {
		t.Fatalf("provider called %d times, want 1", got)
	}
	if len(rig.delivered) != 1 || rig.delivered[0] != "hello world" {
		t.Fatalf("delivered = %q, want [hello world]", rig.delivered)
	}
	if !rig.sawBefore(StateTranscribing, StateDone) {
		t.Fatalf("Done reached without passing Transcribing: %v", rig.transitions)
	}
}

func TestRefineFailureDeliversRawTranscript(t *testing.T) {
	refiner := &stubRefiner{err: errors.New("rate limit exceeded")}
	rig := newTestRig(t, &stubProvider{text: "hello world"}, refiner)
	d := rig.d

	d.handleTrigger(triggerEvent(startKind))
	rig.ctx.capture().Emit(pcmBlock(0.06, 320))
	rig.waitState(t, StateRecording)
	d.handleTrigger(triggerEvent(stopKind))
	rig.waitState(t, StateDone)

	if len(rig.delivered) != 1 || rig.delivered[0] != "hello world" {
		t.Fatalf("delivered = %q, want the raw transcript", rig.delivered)
	}
	if !rig.sawBefore(StateRefining, StateDone) {
		t.Fatalf("refine pass skipped: %v", rig.transitions)
	}
}

func TestProviderErrorEntersErrorState(t *testing.T) {
	rig := newTestRig(t, &stubProvider{err: errors.New("401 unauthorized")}, nil)
	d := rig.d

	d.handleTrigger(triggerEvent(startKind))
	rig.ctx.capture().Emit(pcmBlock(0.06, 320))
	rig.waitState(t, StateRecording)
	d.handleTrigger(triggerEvent(stopKind))
	rig.waitState(t, StateError)

	if len(rig.delivered) != 0 {
		t.Fatalf("delivered %q despite provider error", rig.delivered)
	}
	if !rig.sawBefore(StateTranscribing, StateError) {
		t.Fatalf("Error reached without passing Transcribing: %v", rig.transitions)
	}
}

func TestStopIsNoopOutsideLiveSession(t *testing.T) {
	rig := newTestRig(t, &stubProvider{}, nil)
	d := rig.d

	// Idle: nothing to stop.
	d.handleTrigger(triggerEvent(stopKind))
	if d.state != StateIdle {
		t.Fatalf("stop in Idle moved state to %v", d.state)
	}

	// Done: a late duplicate stop must not restart transcription.
	d.handleTrigger(triggerEvent(startKind))
	d.handleTrigger(triggerEvent(stopKind))
	rig.waitState(t, StateDone)
	d.handleTrigger(triggerEvent(stopKind))
	if d.state != StateDone {
		t.Fatalf("stop in Done moved state to %v", d.state)
	}
}

func TestDoneAutoRevertsToIdle(t *testing.T) {
	rig := newTestRig(t, &stubProvider{}, nil)
	d := rig.d

	d.handleTrigger(triggerEvent(startKind))
	d.handleTrigger(triggerEvent(stopKind))
	rig.waitState(t, StateDone)

	d.revertAt = time.Now().Add(-time.Millisecond)
	d.tick()
	if d.state != StateIdle {
		t.Fatalf("state after linger = %v, want Idle", d.state)
	}
	if d.sess != nil {
		t.Fatal("session not dropped on revert")
	}

	// The daemon must be ready for the next trigger.
	d.handleTrigger(triggerEvent(startKind))
	if d.state != StateListening {
		t.Fatalf("re-arm after revert: state = %v, want Listening", d.state)
	}
}

func TestStaleSessionMessagesAreDropped(t *testing.T) {
	rig := newTestRig(t, &stubProvider{}, nil)
	d := rig.d

	d.handleTrigger(triggerEvent(startKind))
	staleID := d.sess.id
	d.handleTrigger(triggerEvent(stopKind))
	rig.waitState(t, StateDone)
	d.revertAt = time.Now().Add(-time.Millisecond)
	d.tick()

	d.handleTrigger(triggerEvent(startKind))
	d.post(audioLevelMsg{session: staleID, level: 0.9})
	d.tick()
	if d.state != StateListening {
		t.Fatalf("stale loud chunk promoted the new session: state = %v", d.state)
	}

	d.post(transcriptMsg{session: staleID, text: "ghost"})
	d.tick()
	if d.state != StateListening || len(rig.delivered) != 0 {
		t.Fatalf("stale transcript processed: state = %v, delivered = %q", d.state, rig.delivered)
	}
}

func TestInterimMirroredToStatusWithReplaceSemantics(t *testing.T) {
	rig := newTestRig(t, &stubProvider{}, nil)
	d := rig.d

	d.handleTrigger(triggerEvent(startKind))
	id := d.sess.id

	d.post(interimMsg{session: id, text: "hel"})
	d.tick()
	if got := status.ReadInterim(rig.statusDir); got != "hel" {
		t.Fatalf("interim file = %q, want %q", got, "hel")
	}

	// Each partial supersedes the previous one.
	d.post(interimMsg{session: id, text: "hello world"})
	d.tick()
	if got := status.ReadInterim(rig.statusDir); got != "hello world" {
		t.Fatalf("interim file = %q, want %q", got, "hello world")
	}

	// A partial from a superseded session must not leak into the file.
	d.post(interimMsg{session: "stale-session", text: "ghost"})
	d.tick()
	if got := status.ReadInterim(rig.statusDir); got != "hello world" {
		t.Fatalf("stale interim reached the status file: %q", got)
	}

	d.handleTrigger(triggerEvent(stopKind))
	rig.waitState(t, StateDone)
	if got := status.ReadInterim(rig.statusDir); got != "" {
		t.Fatalf("interim file not cleared at session end: %q", got)
	}
}

func TestQueuedLoudChunkCountedAtStop(t *testing.T) {
	rig := newTestRig(t, &stubProvider{text: "hi"}, nil)
	d := rig.d

	d.handleTrigger(triggerEvent(startKind))
	mic := rig.ctx.capture()
	mic.Emit(pcmBlock(0.06, 320))

	// Wait for the level message to be queued, but do not tick: the stop
	// must drain it itself before snapshotting.
	deadline := time.Now().Add(2 * time.Second)
	for len(d.msgs) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("level message never queued")
		}
		time.Sleep(time.Millisecond)
	}

	d.handleTrigger(triggerEvent(stopKind))
	rig.waitState(t, StateDone)

	if got := rig.provider.callCount(); got != 1 {
		t.Fatalf("provider called %d times, want 1 (tail chunk lost)", got)
	}
	if len(rig.delivered) != 1 || rig.delivered[0] != "hi" {
		t.Fatalf("delivered = %q, want [hi]", rig.delivered)
	}
}

func TestArmIgnoredWhileSessionLive(t *testing.T) {
	rig := newTestRig(t, &stubProvider{}, nil)
	d := rig.d

	d.handleTrigger(triggerEvent(startKind))
	first := d.sess.id
	d.handleTrigger(triggerEvent(startKind))
	if d.sess.id != first {
		t.Fatal("second arm replaced the live session")
	}
}
