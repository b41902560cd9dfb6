// Package status publishes the daemon's current state and interim transcript
// to small files that external UI processes poll. Files are always replaced
// atomically so a reader never observes a partial value.
package status

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	StateFile   = "state"
	InterimFile = "interim"
	LeaseFile   = "lease"
)

// Dir resolves the runtime directory holding the broadcast files.
func Dir(override string) string {
	if override != "" {
		return override
	}
	if xdg.RuntimeDir != "" {
		return filepath.Join(xdg.RuntimeDir, "mutter")
	}
	return filepath.Join(os.TempDir(), "mutter")
}

type Broadcast struct {
	dir string
}

func New(dir string) (*Broadcast, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("status dir: %w", err)
	}
	return &Broadcast{dir: dir}, nil
}

func (b *Broadcast) LeasePath() string {
	return filepath.Join(b.dir, LeaseFile)
}

// SetState overwrites the state file on every transition.
func (b *Broadcast) SetState(state string) error {
	return b.replace(StateFile, state)
}

// SetInterim overwrites the interim transcript; partials supersede each
// other rather than append.
func (b *Broadcast) SetInterim(text string) error {
	return b.replace(InterimFile, text)
}

// ClearInterim empties the interim file at session end.
func (b *Broadcast) ClearInterim() error {
	return b.replace(InterimFile, "")
}

// Clear resets the broadcast to idle; called at shutdown.
func (b *Broadcast) Clear() {
	b.SetState("idle")
	b.ClearInterim()
}

func (b *Broadcast) replace(name, content string) error {
	tmp, err := os.CreateTemp(b.dir, "."+name+"-*")
	if err != nil {
		return fmt.Errorf("status temp: %w", err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("status write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("status close: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(b.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("status rename: %w", err)
	}
	return nil
}

// ReadState is the reader half of the protocol, used by external tools.
// Absence or read failure means idle.
func ReadState(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, StateFile))
	if err != nil {
		return "idle"
	}
	return string(data)
}

// ReadInterim returns the current interim transcript, empty if none.
func ReadInterim(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, InterimFile))
	if err != nil {
		return ""
	}
	return string(data)
}
