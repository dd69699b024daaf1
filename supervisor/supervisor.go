// Package supervisor implements a fixed-capacity registry of supervised
// child processes. Each child is identified by a small integer handle and
// owns two non-blocking pipes for its stdout and stderr. The registry
// tracks the child's lifecycle through a single exit-code cell and
// reclaims the slot only once both pipes have been drained to EOF and a
// terminal exit code has been recorded.
package supervisor

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tritondatacenter/procwrapper/events"
)

// Capacity is the number of slots in a Supervisor. Starting another child
// while all slots are live fails with ErrCapacityExhausted.
const Capacity = 64

// Exit-code cell sentinels. Terminal codes are >= 0: the child's exit
// status for a normal exit, or 128 + signum when killed by a signal.
const (
	// ExitRunning marks a child that has not yet been reaped.
	ExitRunning = -2
	// ExitError marks a child whose status could not be determined.
	ExitError = -1
)

const exitSignalOffset = 128

var (
	// ErrInvalidHandle is returned for handles outside [0, Capacity) or
	// handles whose slot is not in use.
	ErrInvalidHandle = errors.New("supervisor: invalid handle")
	// ErrInvalidArgument is returned for empty paths, argv, or buffers.
	ErrInvalidArgument = errors.New("supervisor: invalid argument")
	// ErrCapacityExhausted is returned by Start when no slot is free.
	ErrCapacityExhausted = errors.New("supervisor: capacity exhausted")
)

// fdClosed is the sentinel stored in place of a pipe fd once the stream
// has been closed (or before the slot is populated).
const fdClosed = -1

// slot is the per-child record. All fields are guarded by the
// Supervisor's mutex.
type slot struct {
	inUse    bool
	pid      int
	name     string // executable path, for logs and events
	stdoutFD int
	stderrFD int
	exitCode int
}

// terminal reports whether the exit-code cell holds a final value.
// Transitions out of ExitRunning happen at most once.
func (sl *slot) terminal() bool {
	return sl.exitCode != ExitRunning
}

// Supervisor is the process registry. The zero value is not usable; use
// New. One mutex guards the whole table; critical sections only inspect
// or mutate slot fields and are never held across blocking syscalls.
type Supervisor struct {
	mu    sync.Mutex
	slots [Capacity]slot
	bus   *events.EventBus
}

// New returns an empty Supervisor with all slots free.
func New() *Supervisor {
	s := &Supervisor{}
	for i := range s.slots {
		s.slots[i].stdoutFD = fdClosed
		s.slots[i].stderrFD = fdClosed
		s.slots[i].exitCode = ExitError
	}
	return s
}

// WithBus attaches an event bus; the Supervisor publishes lifecycle
// events (Started, ExitSuccess, ExitFailed, Stopping, Stopped, Killed)
// for every supervised child. Must be called before any Start.
func (s *Supervisor) WithBus(bus *events.EventBus) *Supervisor {
	s.bus = bus
	return s
}

func (s *Supervisor) publish(code events.EventCode, source string) {
	if s.bus != nil {
		s.bus.Publish(events.Event{Code: code, Source: source})
	}
}

// validHandle bounds-checks a caller-supplied handle.
func validHandle(handle int) bool {
	return handle >= 0 && handle < Capacity
}

// maybeReclaim frees the slot once both pipe endpoints are closed and the
// exit code is terminal. Callers must hold s.mu. The exit code is left in
// place so late observers still see the final value.
func (s *Supervisor) maybeReclaim(handle int) {
	sl := &s.slots[handle]
	if !sl.inUse {
		return
	}
	if sl.stdoutFD == fdClosed && sl.stderrFD == fdClosed && sl.terminal() {
		sl.inUse = false
		log.Debugf("%s[%d]: slot reclaimed", sl.name, handle)
	}
}

// IsRunning reaps the child if it has terminated, then reports whether it
// is still alive. Returns false for invalid handles.
func (s *Supervisor) IsRunning(handle int) bool {
	if !validHandle(handle) {
		return false
	}
	s.reap(handle)
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := &s.slots[handle]
	return sl.inUse && !sl.terminal()
}

// ExitCode reaps the child if it has terminated, then reports the
// exit-code cell: the exit status (0..255) for a normal exit, 128+signum
// for a signal death, ExitRunning while alive, ExitError for an invalid
// handle or a failed reap.
func (s *Supervisor) ExitCode(handle int) int {
	if !validHandle(handle) {
		return ExitError
	}
	s.reap(handle)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[handle].exitCode
}

// label formats the slot's name and handle for logs and event sources.
func label(name string, handle int) string {
	return fmt.Sprintf("%s[%d]", name, handle)
}
