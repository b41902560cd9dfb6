package audio

import "sync"

// FakeContext hands out FakeCapture devices for tests and headless runs.
type FakeContext struct{}

func NewFakeContext() *FakeContext { return &FakeContext{} }

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return nil, nil }
func (f *FakeContext) Close()                         {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return NewFakeCapture(), nil
}

// FakeCapture is a capture device driven by the test via Emit.
type FakeCapture struct {
	mu      sync.Mutex
	cb      DataCallback
	started bool
}

func NewFakeCapture() *FakeCapture { return &FakeCapture{} }

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	f.started = false
	f.mu.Unlock()
}

func (f *FakeCapture) Close() { f.Stop() }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

// Emit delivers a PCM block to the registered callback, as the platform
// backend would.
func (f *FakeCapture) Emit(pcm []byte) {
	f.mu.Lock()
	cb := f.cb
	started := f.started
	f.mu.Unlock()
	if cb != nil && started {
		cb(pcm, uint32(len(pcm)/2))
	}
}
