package main

import (
	"context"
	"fmt"
	"time"

	"mutter/audio"
	"mutter/beep"
	"mutter/clipboard"
	"mutter/hotkey"
	"mutter/log"
	"mutter/refine"
	"mutter/status"
	"mutter/transcriber"
)

const (
	// First chunk whose RMS exceeds this confirms actual speech.
	vadThreshold = 0.02

	msgQueueDepth = 256
	refineTimeout = 30 * time.Second

	// How long Done/Error stay visible before auto-reverting to Idle.
	doneLinger  = 1 * time.Second
	errorLinger = 3 * time.Second
)

type daemonConfig struct {
	Provider  transcriber.Provider
	Refiner   refine.Refiner
	AudioCtx  audio.Context
	Device    *audio.DeviceInfo
	Status    *status.Broadcast
	Model     string
	Language  string
	Stream    bool
	Autopaste bool
}

// daemon is the session state machine. It runs on a single control
// goroutine that owns state and session exclusively; workers reach it only
// through the message queue, drained on a fixed tick.
type daemon struct {
	cfg   daemonConfig
	coord *coordinator
	vad   *vadProcessor
	msgs  chan daemonMsg

	state    AppState
	sess     *session
	silence  *silenceMonitor
	revertAt time.Time

	deliver      func(text string) error
	onTransition func(from, to AppState)
}

func newDaemon(cfg daemonConfig) *daemon {
	d := &daemon{
		cfg:   cfg,
		msgs:  make(chan daemonMsg, msgQueueDepth),
		state: StateIdle,
	}
	d.coord = newCoordinator(cfg.Provider, cfg.Model, cfg.Language, d.post)
	d.deliver = d.deliverClipboard

	v, err := newVADProcessor()
	if err != nil {
		log.Warnf("voice activity detection unavailable: %v", err)
	} else {
		d.vad = v
	}
	return d
}

// post enqueues a worker message. Dropping on overflow keeps workers from
// ever blocking on the control thread.
func (d *daemon) post(m daemonMsg) {
	select {
	case d.msgs <- m:
	default:
		log.Warn("message queue full, dropping")
	}
}

// Run drives the state machine until ctx is cancelled. The control thread
// never blocks on I/O; it waits for hotkey events and the drain tick.
func (d *daemon) Run(ctx context.Context, events <-chan hotkey.Event) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	d.setState(StateIdle)
	for {
		select {
		case <-ctx.Done():
			if d.sess != nil {
				d.sess.stop.Set()
				if d.sess.stream != nil {
					go d.sess.stream.Abandon()
				}
			}
			return
		case ev := <-events:
			d.handleTrigger(ev)
		case <-ticker.C:
			d.tick()
		}
	}
}

func (d *daemon) handleTrigger(ev hotkey.Event) {
	switch ev.Kind {
	case hotkey.Start:
		// A new arm while not Idle is ignored; no queueing, no preemption.
		if d.state == StateIdle {
			d.arm()
		}
	case hotkey.Toggled:
		if d.sess != nil {
			d.sess.kind = kindToggle
		}
	case hotkey.Stop:
		d.requestStop()
	}
}

func (d *daemon) arm() {
	sess := newSession()

	// Streaming capability is checked here so the socket spans the whole
	// recording; not supported or not enabled means plain batch.
	if stream := d.coord.openStream(d.cfg.Stream); stream != nil {
		sess.stream = stream
		sess.mode = modeStreaming
		d.coord.pumpInterim(sess.id, stream.Updates())
	}

	device, err := d.cfg.AudioCtx.NewCapture(d.cfg.Device, audio.CaptureConfig{
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
	})
	if err != nil {
		d.sess = sess
		d.abandonStream(sess)
		d.enterError(fmt.Errorf("audio device: %w", err))
		return
	}

	if d.vad != nil {
		d.vad.Reset()
	}
	sess.capture = newCaptureWorker(sess.id, device, sess.stop, d.vad, sess.stream, d.post)
	if err := sess.capture.start(); err != nil {
		d.sess = sess
		d.abandonStream(sess)
		d.enterError(fmt.Errorf("audio capture: %w", err))
		return
	}

	d.sess = sess
	d.silence = newSilenceMonitor()
	d.setState(StateListening)
	beep.PlayStart()
	log.SessionStart(d.cfg.Provider.Name(), sess.mode.String())
}

// requestStop ends the live session. In any state other than Listening or
// Recording it is a no-op, so a late or duplicate stop can never drag a
// finished session back to Transcribing.
func (d *daemon) requestStop() {
	if d.state != StateListening && d.state != StateRecording {
		return
	}
	// A loud chunk from the tail of the utterance may still be queued;
	// consume it so the speech snapshot below does not miss it.
	d.drainMsgs()

	sess := d.sess
	sess.stop.Set()
	d.setState(StateTranscribing)
	beep.PlayEnd()

	// Snapshot before hand-off; the worker never reads live session fields.
	d.coord.finish(sess, sess.speech)
}

// tick drains the message queue in FIFO order, runs silence supervision,
// and handles the Done/Error auto-revert.
func (d *daemon) tick() {
	d.drainMsgs()
	d.superviseSilence()
	d.maybeRevert()
}

func (d *daemon) drainMsgs() {
	for {
		select {
		case m := <-d.msgs:
			d.handleMsg(m)
		default:
			return
		}
	}
}

func (d *daemon) handleMsg(m daemonMsg) {
	// Messages from a superseded session are dropped, not processed.
	if d.sess == nil || m.sessionID() != d.sess.id {
		return
	}

	switch m := m.(type) {
	case audioLevelMsg:
		if d.state == StateListening && m.level > vadThreshold {
			d.sess.speech = true
			d.setState(StateRecording)
		}

	case interimMsg:
		switch d.state {
		case StateListening, StateRecording, StateTranscribing:
			d.sess.interim = m.text
			d.cfg.Status.SetInterim(m.text)
		}

	case transcriptMsg:
		if d.state != StateTranscribing {
			return
		}
		if m.err != nil {
			d.enterError(m.err)
			return
		}
		if m.noSpeech {
			log.Info("no speech detected, skipping delivery")
			d.complete("")
			return
		}
		if d.cfg.Refiner != nil {
			d.setState(StateRefining)
			d.startRefine(d.sess.id, m.text)
			return
		}
		d.complete(m.text)

	case refinedMsg:
		if d.state == StateRefining {
			d.complete(m.text)
		}
	}
}

// startRefine runs the refine pass on a worker goroutine. It cannot fail:
// Apply hands back the raw text on any error.
func (d *daemon) startRefine(session, text string) {
	refiner := d.cfg.Refiner
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), refineTimeout)
		defer cancel()
		d.post(refinedMsg{session: session, text: refine.Apply(ctx, refiner, text)})
	}()
}

func (d *daemon) complete(text string) {
	if text != "" {
		if err := d.deliver(text); err != nil {
			log.Errorf("delivery failed: %v", err)
		}
		log.TranscriptionText(text)
	}
	d.cfg.Status.ClearInterim()
	d.setState(StateDone)
	d.revertAt = time.Now().Add(doneLinger)
	log.SessionEnd(len(text))
}

func (d *daemon) enterError(err error) {
	log.Errorf("session failed: %v", err)
	d.cfg.Status.ClearInterim()
	d.setState(StateError)
	d.revertAt = time.Now().Add(errorLinger)
	beep.PlayError()
}

func (d *daemon) superviseSilence() {
	if d.state != StateListening && d.state != StateRecording {
		return
	}
	if d.vad == nil || d.silence == nil {
		return
	}
	hasSpeech := d.vad.HasSpeechTick()
	switch d.silence.Tick(hasSpeech, d.sess.kind == kindToggle) {
	case SilenceWarn:
		log.Warn("no speech detected for a while")
		beep.PlayError()
	case SilenceRepeat:
		beep.PlayError()
	case SilenceWarnClear:
		log.Info("speech resumed")
	case SilenceAutoClose:
		log.Warn("closing silent toggle session")
		d.requestStop()
	}
}

func (d *daemon) maybeRevert() {
	if d.state != StateDone && d.state != StateError {
		return
	}
	if time.Now().Before(d.revertAt) {
		return
	}
	d.sess = nil
	d.silence = nil
	d.setState(StateIdle)
}

func (d *daemon) abandonStream(sess *session) {
	if sess.stream != nil {
		go sess.stream.Abandon()
	}
}

func (d *daemon) setState(s AppState) {
	if s == d.state && s != StateIdle {
		return
	}
	from := d.state
	d.state = s
	if err := d.cfg.Status.SetState(s.String()); err != nil {
		log.Warnf("status broadcast: %v", err)
	}
	id := ""
	if d.sess != nil {
		id = d.sess.id
	}
	log.Transition(id, from.String(), s.String())
	if d.onTransition != nil {
		d.onTransition(from, s)
	}
}

func (d *daemon) deliverClipboard(text string) error {
	if err := clipboard.Copy(text); err != nil {
		return err
	}
	if d.cfg.Autopaste {
		if err := clipboard.Paste(); err != nil {
			return err
		}
	}
	return nil
}
