package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"mutter/audio"
	"mutter/log"
	"mutter/transcriber"
)

// Every remote call is bounded; a timeout maps to the same Error state as
// any other provider failure.
const requestTimeout = 60 * time.Second

// coordinator dispatches finished sessions to a batch or streaming worker.
// It posts exactly one transcriptMsg per session. Strategy selection is a
// capability check, invisible to the state machine.
type coordinator struct {
	provider transcriber.Provider
	model    string
	language string
	post     func(daemonMsg)
}

func newCoordinator(provider transcriber.Provider, model, language string, post func(daemonMsg)) *coordinator {
	return &coordinator{provider: provider, model: model, language: language, post: post}
}

// openStream dials the provider's live endpoint when streaming is enabled
// and supported. A nil return means the session runs in batch mode.
func (c *coordinator) openStream(enabled bool) transcriber.StreamSession {
	if !enabled || !c.provider.SupportsStreaming() {
		return nil
	}
	s, ok := c.provider.(transcriber.Streamer)
	if !ok {
		return nil
	}
	return s.OpenStream(context.Background(), transcriber.StreamConfig{
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
		Model:      c.model,
		Language:   c.language,
	})
}

// pumpInterim relays partial transcripts into the control queue until the
// stream's update channel closes.
func (c *coordinator) pumpInterim(session string, updates <-chan string) {
	go func() {
		for text := range updates {
			c.post(interimMsg{session: session, text: text})
		}
	}()
}

// finish takes ownership of the session's audio once the capture worker
// drains, then runs the selected strategy on this worker goroutine. speech
// is the control thread's snapshot of whether loudness ever crossed the
// threshold.
func (c *coordinator) finish(sess *session, speech bool) {
	go func() {
		pcm := sess.capture.wait()
		if sess.stream != nil {
			c.finishStream(sess.id, sess.stream, len(pcm) > 0 && speech)
			return
		}
		c.finishBatch(sess.id, pcm, speech)
	}()
}

func (c *coordinator) finishBatch(session string, pcm []byte, speech bool) {
	if len(pcm) == 0 || !speech {
		// Nothing worth sending; synthesize the empty result without a
		// provider call.
		c.post(transcriptMsg{session: session, noSpeech: true})
		return
	}

	wav, err := audio.EncodeWAV(pcm, audio.SampleRate)
	if err != nil {
		c.post(transcriptMsg{session: session, err: err})
		return
	}

	req := transcriber.Request{Model: c.model, Language: c.language}
	if c.provider.RequiresFile() {
		path, err := writeTempWAV(wav)
		if err != nil {
			c.post(transcriptMsg{session: session, err: err})
			return
		}
		defer os.Remove(path)
		req.Path = path
	} else {
		req.WAV = wav
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	text, err := c.provider.Transcribe(ctx, req)
	if err != nil {
		c.post(transcriptMsg{session: session, err: err})
		return
	}
	if strings.TrimSpace(text) == "" {
		c.post(transcriptMsg{session: session, noSpeech: true})
		return
	}
	c.post(transcriptMsg{session: session, text: text})
}

func (c *coordinator) finishStream(session string, stream transcriber.StreamSession, speech bool) {
	if !speech {
		stream.Abandon()
		c.post(transcriptMsg{session: session, noSpeech: true})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	text, err := stream.Finalize(ctx)
	if err != nil {
		c.post(transcriptMsg{session: session, err: err})
		return
	}
	if strings.TrimSpace(text) == "" {
		c.post(transcriptMsg{session: session, noSpeech: true})
		return
	}
	c.post(transcriptMsg{session: session, text: text})
}

func writeTempWAV(wav []byte) (string, error) {
	f, err := os.CreateTemp("", "mutter-*.wav")
	if err != nil {
		return "", fmt.Errorf("temp wav: %w", err)
	}
	if _, err := f.Write(wav); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("temp wav write: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("temp wav close: %w", err)
	}
	log.Infof("wrote recording to %s", f.Name())
	return f.Name(), nil
}
