//go:build linux

package beep

import (
	"github.com/jfreymuth/pulse"
)

func play(samples []int16) {
	client, err := pulse.NewClient()
	if err != nil {
		return
	}
	defer client.Close()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		n := copy(buf, samples[pos:])
		pos += n
		if n == 0 {
			return 0, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(reader, pulse.PlaybackSampleRate(sampleRate), pulse.PlaybackMono)
	if err != nil {
		return
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
}
