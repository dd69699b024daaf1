package supervisor

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tritondatacenter/procwrapper/events"
	"golang.org/x/sys/unix"
)

// Termination grace: after SIGTERM the child gets graceInterval *
// graceRetries to exit on its own before escalating to SIGKILL.
const (
	graceInterval = 100 * time.Millisecond
	graceRetries  = 10
)

// Stop terminates the supervised child: SIGTERM first, then a bounded
// grace period of roughly one second, then SIGKILL with a blocking wait.
// Stopping an already-terminated child is not an error. Stop records the
// child's exit code but never force-closes its pipes; readers still drain
// any buffered output and close them on EOF.
func (s *Supervisor) Stop(handle int) error {
	if !validHandle(handle) {
		return ErrInvalidHandle
	}

	s.mu.Lock()
	sl := &s.slots[handle]
	if !sl.inUse || sl.terminal() || sl.pid == 0 {
		s.mu.Unlock()
		return nil // already terminated
	}
	pid := sl.pid
	source := label(sl.name, handle)
	s.mu.Unlock()

	s.publish(events.Stopping, source)
	log.Debugf("%s: sending SIGTERM to pid %d", source, pid)
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if err == unix.ESRCH {
			s.reap(handle)
			return nil
		}
		// other signal errors are not propagated; fall through and let
		// the escalation path settle the child's fate
		log.Errorf("%s: SIGTERM failed: %v", source, err)
	}

	for i := 0; i < graceRetries; i++ {
		s.reap(handle)
		if s.terminated(handle) {
			s.publish(events.Stopped, source)
			return nil
		}
		time.Sleep(graceInterval)
	}

	log.Debugf("%s: grace period expired, sending SIGKILL to pid %d", source, pid)
	unix.Kill(pid, unix.SIGKILL)
	s.publish(events.Killed, source)

	var ws unix.WaitStatus
	wpid, err := waitBlocking(pid, &ws)
	s.commitWait(handle, wpid == pid, ws, err)
	s.publish(events.Stopped, source)
	return nil
}

func (s *Supervisor) terminated(handle int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := &s.slots[handle]
	return !sl.inUse || sl.terminal()
}

// waitBlocking wraps wait4 without WNOHANG, retrying on EINTR. Only used
// after SIGKILL, when the child's death is imminent.
func waitBlocking(pid int, ws *unix.WaitStatus) (int, error) {
	for {
		wpid, err := unix.Wait4(pid, ws, 0, nil)
		if err != unix.EINTR {
			return wpid, err
		}
	}
}
