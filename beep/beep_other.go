//go:build !linux

package beep

import (
	"encoding/binary"
	"time"

	"github.com/gen2brain/malgo"
)

func play(samples []int16) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	defer func() {
		ctx.Uninit()
		ctx.Free()
	}()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = sampleRate

	pos := 0
	done := make(chan struct{})
	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			for i := uint32(0); i < frameCount; i++ {
				var s int16
				if pos < len(samples) {
					s = samples[pos]
					pos++
				}
				binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
			}
			if pos >= len(samples) {
				select {
				case <-done:
				default:
					close(done)
				}
			}
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return
	}
	defer dev.Uninit()

	if err := dev.Start(); err != nil {
		return
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}
