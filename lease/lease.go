// Package lease enforces single-instance operation through a pid file.
//
// At startup the previous instance's lease is inspected: a dead or
// unidentifiable owner only loses its file, a confirmed live owner is asked
// to terminate. Only after cleanup is the caller's own pid written.
package lease

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrConflict is returned when a live, identity-confirmed instance survives
// both graceful and forced termination.
var ErrConflict = errors.New("another instance is running and would not exit")

// Recovery reports what Acquire had to do with a previous lease.
type Recovery int

const (
	// RecoveryNone: no previous lease, or it already named this process.
	RecoveryNone Recovery = iota
	// RecoveryStaleCleared: the named process was dead; file removed.
	RecoveryStaleCleared
	// RecoveryUnidentified: a live process held the pid but its command line
	// did not identify it as this application; file removed, nothing signaled.
	RecoveryUnidentified
	// RecoveryTerminated: a previous live instance was asked to exit.
	RecoveryTerminated
)

const defaultGrace = 2 * time.Second

type Lease struct {
	Path string

	// Identity marker looked for in the owner's command line before any
	// signal is sent; defaults to the current executable's base name.
	Marker string

	Grace time.Duration

	// Probes, overridable in tests.
	alive     func(pid int) bool
	cmdline   func(pid int) (string, error)
	terminate func(pid int) error
	kill      func(pid int) error
}

func New(path string) *Lease {
	marker := "mutter"
	if exe, err := os.Executable(); err == nil {
		marker = filepath.Base(exe)
	}
	return &Lease{
		Path:      path,
		Marker:    marker,
		Grace:     defaultGrace,
		alive:     processAlive,
		cmdline:   processCmdline,
		terminate: terminateProcess,
		kill:      killProcess,
	}
}

// Acquire runs the startup cleanup sequence exactly once and writes this
// process's pid. It must complete before any hotkey listener is installed.
func (l *Lease) Acquire() (Recovery, error) {
	ownPid := os.Getpid()

	data, err := os.ReadFile(l.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			return RecoveryNone, fmt.Errorf("read lease: %w", err)
		}
		return RecoveryNone, l.write(ownPid)
	}

	pid, perr := strconv.Atoi(strings.TrimSpace(string(data)))
	if perr != nil || pid <= 0 {
		// Garbage in the file: treat like a stale lease.
		if err := os.Remove(l.Path); err != nil {
			return RecoveryNone, fmt.Errorf("remove corrupt lease: %w", err)
		}
		return RecoveryStaleCleared, l.write(ownPid)
	}

	// Never act on a lease naming ourselves; the file is already correct.
	if pid == ownPid {
		return RecoveryNone, nil
	}

	if !l.alive(pid) {
		if err := os.Remove(l.Path); err != nil {
			return RecoveryNone, fmt.Errorf("remove stale lease: %w", err)
		}
		return RecoveryStaleCleared, l.write(ownPid)
	}

	// The pid is live. Confirm it is actually a previous instance of this
	// application before sending any signal; pids get recycled.
	cmd, err := l.cmdline(pid)
	if err != nil || !strings.Contains(cmd, l.Marker) {
		if err := os.Remove(l.Path); err != nil {
			return RecoveryNone, fmt.Errorf("remove unidentified lease: %w", err)
		}
		return RecoveryUnidentified, l.write(ownPid)
	}

	if err := l.retire(pid); err != nil {
		return RecoveryNone, err
	}
	if err := os.Remove(l.Path); err != nil && !os.IsNotExist(err) {
		return RecoveryNone, fmt.Errorf("remove lease: %w", err)
	}
	return RecoveryTerminated, l.write(ownPid)
}

// retire asks the confirmed previous instance to exit, escalating to a hard
// kill after the grace period.
func (l *Lease) retire(pid int) error {
	_ = l.terminate(pid)

	deadline := time.Now().Add(l.Grace)
	for time.Now().Before(deadline) {
		if !l.alive(pid) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	_ = l.kill(pid)
	time.Sleep(100 * time.Millisecond)
	if l.alive(pid) {
		return ErrConflict
	}
	return nil
}

// Release removes the lease if it still names this process.
func (l *Lease) Release() {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return
	}
	if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && pid == os.Getpid() {
		os.Remove(l.Path)
	}
}

// write replaces the lease atomically so an external reader never sees a
// partial pid.
func (l *Lease) write(pid int) error {
	if err := os.MkdirAll(filepath.Dir(l.Path), 0755); err != nil {
		return fmt.Errorf("lease dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(l.Path), ".lease-*")
	if err != nil {
		return fmt.Errorf("lease temp: %w", err)
	}
	if _, err := fmt.Fprintf(tmp, "%d", pid); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("lease write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("lease close: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("lease rename: %w", err)
	}
	return nil
}
