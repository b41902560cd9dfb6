package hotkey

import (
	"sync"

	hook "github.com/robotn/gohook"
)

// hookSource watches the same chord through a low-level global hook. It sees
// key releases the OS hotkey API can miss (e.g. when focus changes mid-hold).
type hookSource struct {
	keydown chan struct{}
	keyup   chan struct{}
	once    sync.Once
}

func NewHook() Hotkey {
	return &hookSource{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (h *hookSource) SourceID() string { return "hook" }

func (h *hookSource) Register() error {
	hook.Register(hook.KeyDown, []string{"ctrl", "shift", "space"}, func(hook.Event) {
		select {
		case h.keydown <- struct{}{}:
		default:
		}
	})
	// Release of the main key alone counts: modifiers often come up first.
	hook.Register(hook.KeyUp, []string{"space"}, func(hook.Event) {
		select {
		case h.keyup <- struct{}{}:
		default:
		}
	})

	events := hook.Start()
	go func() {
		<-hook.Process(events)
	}()
	return nil
}

func (h *hookSource) Unregister() {
	h.once.Do(hook.End)
}

func (h *hookSource) Keydown() <-chan struct{} { return h.keydown }
func (h *hookSource) Keyup() <-chan struct{}   { return h.keyup }
