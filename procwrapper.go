// Package procwrapper exposes flat, sentinel-valued process supervision
// operations over a process-wide Supervisor, for hosts that bind the
// library across a language boundary and want C-style integer results
// instead of Go errors. The Go-native API lives in the supervisor
// package.
package procwrapper

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tritondatacenter/procwrapper/events"
	"github.com/tritondatacenter/procwrapper/supervisor"
	"github.com/tritondatacenter/procwrapper/telemetry"
)

// Exit-code sentinels surfaced by GetExitCode.
const (
	// ExitRunning means the child has not terminated yet.
	ExitRunning = supervisor.ExitRunning
	// ExitError means the handle is invalid or the reap failed.
	ExitError = supervisor.ExitError
)

var (
	initOnce          sync.Once
	defaultBus        *events.EventBus
	defaultSupervisor *supervisor.Supervisor
)

// Default returns the process-wide Supervisor, wired to the default event
// bus and the telemetry collectors. It is created on first use.
func Default() *supervisor.Supervisor {
	initOnce.Do(func() {
		defaultBus = events.NewEventBus()
		telemetry.NewMetrics().Run(defaultBus)
		defaultSupervisor = supervisor.New().WithBus(defaultBus)
	})
	return defaultSupervisor
}

// Bus returns the default Supervisor's event bus so hosts can subscribe
// to child lifecycle events.
func Bus() *events.EventBus {
	Default()
	return defaultBus
}

// StartProcess launches the executable at path with the given argument
// vector and returns its handle, or -1 on any failure.
func StartProcess(path string, argv []string) int {
	handle, err := Default().Start(path, argv)
	if err != nil {
		log.Errorf("procwrapper: start %s: %v", path, err)
		return -1
	}
	return handle
}

// ReadStdout copies available stdout bytes into buf. Returns the byte
// count, 0 when no data is available right now or the stream has hit EOF,
// and -1 on error.
func ReadStdout(handle int, buf []byte) int {
	n, err := Default().ReadStdout(handle, buf)
	if err != nil {
		log.Errorf("procwrapper: read stdout %d: %v", handle, err)
		return -1
	}
	return n
}

// ReadStderr is ReadStdout for the child's stderr stream.
func ReadStderr(handle int, buf []byte) int {
	n, err := Default().ReadStderr(handle, buf)
	if err != nil {
		log.Errorf("procwrapper: read stderr %d: %v", handle, err)
		return -1
	}
	return n
}

// IsRunning reports whether the supervised child is still alive. Invalid
// handles report false.
func IsRunning(handle int) bool {
	return Default().IsRunning(handle)
}

// GetExitCode reports the child's exit code (0..255 for a normal exit,
// 128+signum for a signal death), ExitRunning while alive, and ExitError
// for an invalid handle or a failed reap.
func GetExitCode(handle int) int {
	return Default().ExitCode(handle)
}

// StopProcess terminates the child (SIGTERM, ~1s grace, then SIGKILL).
// Returns 0 on success, including when the child had already terminated,
// and -1 on error.
func StopProcess(handle int) int {
	if err := Default().Stop(handle); err != nil {
		log.Errorf("procwrapper: stop %d: %v", handle, err)
		return -1
	}
	return 0
}
