package supervisor

import (
	log "github.com/sirupsen/logrus"
	"github.com/tritondatacenter/procwrapper/events"
	"golang.org/x/sys/unix"
)

// reap performs a non-blocking wait on the slot's child and, if it has
// terminated, records the exit code. Idempotent; any operation may call
// it. Reaping never closes pipes and never frees the slot, so readers can
// keep draining buffered bytes after the child dies and observe a clean
// EOF.
func (s *Supervisor) reap(handle int) {
	s.mu.Lock()
	sl := &s.slots[handle]
	if !sl.inUse || sl.terminal() {
		s.mu.Unlock()
		return
	}
	pid := sl.pid
	s.mu.Unlock()

	// never wait while holding the table lock
	var ws unix.WaitStatus
	wpid, err := waitNoHang(pid, &ws)
	if err == nil && wpid == 0 {
		return // still running
	}
	s.commitWait(handle, wpid == pid, ws, err)
}

// waitNoHang wraps wait4 WNOHANG, retrying on EINTR.
func waitNoHang(pid int, ws *unix.WaitStatus) (int, error) {
	for {
		wpid, err := unix.Wait4(pid, ws, unix.WNOHANG, nil)
		if err != unix.EINTR {
			return wpid, err
		}
	}
}

// commitWait records the result of a wait on the slot's child. Another
// thread may have committed while the caller was in the wait syscall, so
// the cell is re-checked under the lock; the first commit wins and later
// ones are dropped. Publishes the exit event for the winning commit.
func (s *Supervisor) commitWait(handle int, reaped bool, ws unix.WaitStatus, err error) {
	s.mu.Lock()
	sl := &s.slots[handle]
	if !sl.inUse || sl.terminal() {
		s.mu.Unlock()
		return
	}
	switch {
	case err != nil:
		sl.exitCode = ExitError
	case reaped && ws.Exited():
		sl.exitCode = ws.ExitStatus()
	case reaped && ws.Signaled():
		sl.exitCode = exitSignalOffset + int(ws.Signal())
	default:
		sl.exitCode = ExitError
	}
	code := sl.exitCode
	source := label(sl.name, handle)
	s.mu.Unlock()

	log.Debugf("%s: reaped with exit code %d", source, code)
	if code == 0 {
		s.publish(events.ExitSuccess, source)
	} else {
		s.publish(events.ExitFailed, source)
	}
}
