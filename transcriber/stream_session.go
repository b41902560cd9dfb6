package transcriber

import (
	"context"
	"strings"
	"sync"
	"time"

	"mutter/audio"
)

const (
	streamChunkMs    = 200
	streamChunkBytes = audio.SampleRate * audio.Channels * (audio.BitsPerSample / 8) * streamChunkMs / 1000

	// After the server acknowledges the finalize, a brief quiet period lets
	// the last commit message arrive.
	streamFinalizeIdle = 200 * time.Millisecond
	streamFinalizeMax  = 1000 * time.Millisecond
	streamTeardownMax  = 500 * time.Millisecond
)

// rawStream is the provider-specific socket under a streamSession.
type rawStream interface {
	Send(pcm []byte) error
	CloseSend() error
	Recv() (streamUpdate, error)
	Close() error
}

type streamUpdate struct {
	Transcript   string
	IsFinal      bool
	FromFinalize bool
}

// streamSession aggregates partial results from a rawStream. Finalized
// segments are committed in order; the newest interim segment replaces the
// previous one.
type streamSession struct {
	ws        rawStream
	audioCh   chan []byte
	updates   chan string
	connected chan struct{}

	// quit aborts the session without the flush semantics of closing
	// audioCh: Abandon may run while a producer is still inside Feed, so
	// the channel itself is never closed on that path.
	quit      chan struct{}
	quitOnce  sync.Once
	sendDone  chan struct{}
	recvDone  chan struct{}
	finalized chan struct{}
	finalOnce sync.Once

	feedBuf []byte
	feedMu  sync.Mutex

	mu        sync.Mutex
	err       error
	closing   bool
	committed []string
	latest    string
}

func newStreamSession(dial func() (rawStream, error)) *streamSession {
	s := &streamSession{
		audioCh:   make(chan []byte, 128),
		updates:   make(chan string, 16),
		connected: make(chan struct{}),
		quit:      make(chan struct{}),
		sendDone:  make(chan struct{}),
		recvDone:  make(chan struct{}),
		finalized: make(chan struct{}),
	}

	go func() {
		ws, err := dial()
		if err != nil {
			s.setErr(err)
			close(s.sendDone)
			close(s.recvDone)
			close(s.connected)
			return
		}
		s.ws = ws
		close(s.connected)
		go s.runSender()
		go s.runReceiver()
	}()

	return s
}

func (s *streamSession) Feed(pcm []byte) {
	if s.getErr() != nil || s.isClosing() {
		return
	}

	s.feedMu.Lock()
	s.feedBuf = append(s.feedBuf, pcm...)
	var chunks [][]byte
	for len(s.feedBuf) >= streamChunkBytes {
		chunk := make([]byte, streamChunkBytes)
		copy(chunk, s.feedBuf[:streamChunkBytes])
		s.feedBuf = s.feedBuf[streamChunkBytes:]
		chunks = append(chunks, chunk)
	}
	s.feedMu.Unlock()

	for _, chunk := range chunks {
		select {
		case s.audioCh <- chunk:
		case <-s.quit:
			return
		case <-s.sendDone:
			// Sender is gone; dropping audio beats blocking the capture path.
			return
		}
	}
}

func (s *streamSession) Updates() <-chan string { return s.updates }

func (s *streamSession) Finalize(ctx context.Context) (string, error) {
	<-s.connected

	if err := s.getErr(); err != nil {
		s.drainAndClose()
		return "", err
	}

	// Flush buffered PCM shorter than a full chunk.
	s.feedMu.Lock()
	if len(s.feedBuf) > 0 {
		tail := make([]byte, len(s.feedBuf))
		copy(tail, s.feedBuf)
		s.feedBuf = nil
		s.audioCh <- tail
	}
	s.feedMu.Unlock()

	close(s.audioCh)
	<-s.sendDone
	s.ws.CloseSend()

	select {
	case <-s.finalized:
		time.Sleep(streamFinalizeIdle)
	case <-time.After(streamFinalizeMax):
	case <-ctx.Done():
	}

	s.setClosing()
	s.ws.Close()
	select {
	case <-s.recvDone:
		close(s.updates)
	case <-time.After(streamTeardownMax):
		// Receiver still live; leave updates open rather than risk a send
		// on a closed channel.
	}

	if err := s.getErr(); err != nil {
		return "", err
	}
	return s.text(), nil
}

// Abandon tears the session down discarding any result. Unlike Finalize it
// may run while the capture worker is still feeding, so it must not close
// audioCh under a live producer.
func (s *streamSession) Abandon() {
	<-s.connected

	s.setClosing()
	s.quitOnce.Do(func() { close(s.quit) })

	if s.ws == nil {
		s.drainAndClose()
		return
	}

	<-s.sendDone
	s.ws.Close()
	select {
	case <-s.recvDone:
		close(s.updates)
	case <-time.After(streamTeardownMax):
	}
}

func (s *streamSession) drainAndClose() {
	s.quitOnce.Do(func() { close(s.quit) })
	<-s.sendDone
	if s.ws != nil {
		// The receiver may still be blocked in Recv; unblock it.
		s.ws.Close()
	}
	select {
	case <-s.recvDone:
		close(s.updates)
	case <-time.After(streamTeardownMax):
	}
}

func (s *streamSession) runSender() {
	defer close(s.sendDone)
	for {
		select {
		case <-s.quit:
			return
		case chunk, ok := <-s.audioCh:
			if !ok {
				return
			}
			if s.getErr() != nil || s.isClosing() {
				continue // keep draining so Feed never blocks for good
			}
			if err := s.ws.Send(chunk); err != nil {
				s.setErr(err)
			}
		}
	}
}

func (s *streamSession) runReceiver() {
	defer close(s.recvDone)
	for {
		u, err := s.ws.Recv()
		if err != nil {
			// Remote close after finalize is the normal end of session.
			if !s.isClosing() {
				s.setErr(err)
			}
			s.finalOnce.Do(func() { close(s.finalized) })
			return
		}

		s.mu.Lock()
		if u.IsFinal {
			if u.Transcript != "" {
				s.committed = append(s.committed, u.Transcript)
			}
			s.latest = ""
		} else if u.Transcript != "" {
			s.latest = u.Transcript
		}
		text := s.renderLocked()
		s.mu.Unlock()

		if text != "" {
			s.pushUpdate(text)
		}
		if u.FromFinalize {
			s.finalOnce.Do(func() { close(s.finalized) })
		}
	}
}

func (s *streamSession) renderLocked() string {
	parts := s.committed
	if s.latest != "" {
		parts = append(append([]string{}, s.committed...), s.latest)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func (s *streamSession) text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(strings.Join(s.committed, " "))
}

// pushUpdate delivers the newest aggregate, displacing an unconsumed older
// one rather than blocking the receive loop.
func (s *streamSession) pushUpdate(text string) {
	select {
	case s.updates <- text:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- text:
	default:
	}
}

func (s *streamSession) getErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *streamSession) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func (s *streamSession) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *streamSession) setClosing() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
}
