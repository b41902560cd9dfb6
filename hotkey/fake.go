package hotkey

type FakeHotkey struct {
	id      string
	keydown chan struct{}
	keyup   chan struct{}
}

func NewFake(id string) *FakeHotkey {
	return &FakeHotkey{
		id:      id,
		keydown: make(chan struct{}, 4),
		keyup:   make(chan struct{}, 4),
	}
}

func (f *FakeHotkey) Register() error          { return nil }
func (f *FakeHotkey) Unregister()              {}
func (f *FakeHotkey) Keydown() <-chan struct{} { return f.keydown }
func (f *FakeHotkey) Keyup() <-chan struct{}   { return f.keyup }
func (f *FakeHotkey) SourceID() string         { return f.id }

func (f *FakeHotkey) SimKeydown() { f.keydown <- struct{}{} }
func (f *FakeHotkey) SimKeyup()   { f.keyup <- struct{}{} }
