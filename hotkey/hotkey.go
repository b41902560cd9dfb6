// Package hotkey turns global key events from one or more input backends
// into start/stop recording triggers.
package hotkey

// Hotkey is one source of press/release events for the trigger key.
// Two backends may observe the same physical key; SourceID tells them apart.
type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
	SourceID() string
}
