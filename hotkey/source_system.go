package hotkey

import (
	"sync"

	xhotkey "golang.design/x/hotkey"
)

// systemSource registers ctrl+shift+space through the OS hotkey API.
type systemSource struct {
	hk      *xhotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
	quit    chan struct{}
	once    sync.Once
}

func NewSystem() Hotkey {
	return &systemSource{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
}

func (s *systemSource) SourceID() string { return "system" }

func (s *systemSource) Register() error {
	s.hk = xhotkey.New([]xhotkey.Modifier{xhotkey.ModCtrl, xhotkey.ModShift}, xhotkey.KeySpace)
	if err := s.hk.Register(); err != nil {
		return err
	}
	go s.forward()
	return nil
}

func (s *systemSource) forward() {
	for {
		select {
		case <-s.quit:
			return
		case <-s.hk.Keydown():
			select {
			case s.keydown <- struct{}{}:
			default:
			}
		case <-s.hk.Keyup():
			select {
			case s.keyup <- struct{}{}:
			default:
			}
		}
	}
}

func (s *systemSource) Unregister() {
	s.once.Do(func() {
		close(s.quit)
		if s.hk != nil {
			s.hk.Unregister()
		}
	})
}

func (s *systemSource) Keydown() <-chan struct{} { return s.keydown }
func (s *systemSource) Keyup() <-chan struct{}   { return s.keyup }
