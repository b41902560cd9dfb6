package main

import (
	"mutter/audio"
	"mutter/log"
	"mutter/transcriber"
)

// The native callback is the sole producer; the worker goroutine is the sole
// consumer. A full queue drops the newest block rather than blocking inside
// the audio callback.
const captureQueueDepth = 64

// captureWorker owns the microphone stream for one session's lifetime. It
// appends delivered blocks in arrival order, posts a loudness reading per
// block, and stops cooperatively when the session's stopSignal fires.
type captureWorker struct {
	session string
	device  audio.CaptureDevice
	stop    *stopSignal
	vad     *vadProcessor
	sink    transcriber.StreamSession // nil in batch mode
	post    func(daemonMsg)

	feed   chan []byte
	done   chan struct{}
	chunks [][]byte
}

func newCaptureWorker(session string, device audio.CaptureDevice, stop *stopSignal, vad *vadProcessor, sink transcriber.StreamSession, post func(daemonMsg)) *captureWorker {
	return &captureWorker{
		session: session,
		device:  device,
		stop:    stop,
		vad:     vad,
		sink:    sink,
		post:    post,
		feed:    make(chan []byte, captureQueueDepth),
		done:    make(chan struct{}),
	}
}

func (w *captureWorker) start() error {
	w.device.SetCallback(func(data []byte, _ uint32) {
		// Library-owned thread; copy out and never block here.
		block := make([]byte, len(data))
		copy(block, data)
		select {
		case w.feed <- block:
		default:
			log.Warn("capture queue full, dropping audio block")
		}
	})
	if err := w.device.Start(); err != nil {
		w.device.ClearCallback()
		w.device.Close()
		return err
	}
	go w.run()
	return nil
}

func (w *captureWorker) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stop.Done():
			w.device.Stop()
			w.device.ClearCallback()
			w.device.Close()
			// Consume blocks that arrived before the stream stopped.
			for {
				select {
				case block := <-w.feed:
					w.consume(block)
				default:
					return
				}
			}
		case block := <-w.feed:
			w.consume(block)
		}
	}
}

func (w *captureWorker) consume(block []byte) {
	w.chunks = append(w.chunks, block)
	if w.vad != nil {
		w.vad.Process(block)
	}
	if w.sink != nil {
		w.sink.Feed(block)
	}
	w.post(audioLevelMsg{session: w.session, level: audio.RMS(block)})
}

// wait blocks until the worker has drained, then finalizes the recording by
// concatenation in arrival order. Ownership of the buffer transfers to the
// caller; the worker keeps no reference.
func (w *captureWorker) wait() []byte {
	<-w.done
	total := 0
	for _, c := range w.chunks {
		total += len(c)
	}
	if total == 0 {
		return nil
	}
	buf := make([]byte, 0, total)
	for _, c := range w.chunks {
		buf = append(buf, c...)
	}
	w.chunks = nil
	return buf
}
