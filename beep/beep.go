// Package beep plays short feedback tones for session start, end, and error.
package beep

import (
	"math"
	"sync"
)

var disabled bool

// Disable turns all feedback tones off (headless/test runs).
func Disable() { disabled = true }

const (
	sampleRate = 44100

	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

var (
	startSamples []int16
	endSamples   []int16
	errorSamples []int16
	toneOnce     sync.Once
)

func initTones() {
	startSamples = tone(startFreq, 0.2, startVolume, startDecay)
	endSamples = tone(endFreq, 0.2, endVolume, endDecay)
	errorSamples = doubleTone(errorFreq, 0.08, 0.05, errorVolume, errorDecay)
}

func tone(freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func doubleTone(freq, beepDur, gapDur, volume, decay float64) []int16 {
	single := tone(freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	out := make([]int16, 0, len(single)*2+len(gap))
	out = append(out, single...)
	out = append(out, gap...)
	out = append(out, single...)
	return out
}

// Init pre-generates the tones; safe to call from a goroutine at startup.
func Init() {
	toneOnce.Do(initTones)
}

func PlayStart() { playTone(startSamples) }
func PlayEnd()   { playTone(endSamples) }
func PlayError() { playTone(errorSamples) }

func playTone(samples []int16) {
	if disabled {
		return
	}
	toneOnce.Do(initTones)
	play(samples)
}
