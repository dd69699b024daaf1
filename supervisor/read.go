package supervisor

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// stream selects which of the slot's pipe endpoints a read drains.
type stream int

const (
	stdoutStream stream = iota
	stderrStream
)

func (st stream) String() string {
	if st == stdoutStream {
		return "stdout"
	}
	return "stderr"
}

func (sl *slot) fd(st stream) *int {
	if st == stdoutStream {
		return &sl.stdoutFD
	}
	return &sl.stderrFD
}

// ReadStdout drains up to len(buf) bytes from the child's stdout pipe.
// Returns n > 0 when bytes were copied into buf, and 0 both when no data
// is available right now and when the stream has reached EOF; callers
// disambiguate by consulting IsRunning and ExitCode. The first observed
// EOF closes the endpoint, and once both endpoints are closed and the
// exit code is terminal the slot is reclaimed.
func (s *Supervisor) ReadStdout(handle int, buf []byte) (int, error) {
	return s.readPipe(handle, buf, stdoutStream)
}

// ReadStderr is ReadStdout for the child's stderr pipe.
func (s *Supervisor) ReadStderr(handle int, buf []byte) (int, error) {
	return s.readPipe(handle, buf, stderrStream)
}

func (s *Supervisor) readPipe(handle int, buf []byte, st stream) (int, error) {
	if !validHandle(handle) {
		return -1, ErrInvalidHandle
	}
	if len(buf) == 0 {
		return -1, ErrInvalidArgument
	}

	s.mu.Lock()
	fd := *s.slots[handle].fd(st)
	s.mu.Unlock()
	if fd == fdClosed {
		return 0, nil
	}

	n, err := unix.Read(fd, buf)
	if n == 0 && err == nil {
		// EOF: close this endpoint once and reclaim the slot if the
		// other side is closed too and the child has been reaped
		s.mu.Lock()
		sl := &s.slots[handle]
		if *sl.fd(st) != fdClosed {
			unix.Close(*sl.fd(st))
			*sl.fd(st) = fdClosed
			log.Debugf("%s: %s EOF", label(sl.name, handle), st)
			s.maybeReclaim(handle)
		}
		s.mu.Unlock()
		return 0, nil
	}
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, nil
		}
		return -1, fmt.Errorf("supervisor: read %s: %v", st, err)
	}
	return n, nil
}
