package supervisor

import (
	"fmt"
	"os"
	"os/exec"

	log "github.com/sirupsen/logrus"
	"github.com/tritondatacenter/procwrapper/events"
	"golang.org/x/sys/unix"
)

// execFailureStatus is the status a child reports when its executable
// could not be run, matching the shell convention for "command not found".
const execFailureStatus = 127

// Start launches path with the argument vector argv (argv[0] is passed to
// the child untouched, conventionally echoing the program name) and
// returns the handle of the slot now supervising it. The child's stdout
// and stderr are captured through non-blocking pipes drained via
// ReadStdout and ReadStderr.
//
// If the executable cannot be run at all, Start still returns a valid
// handle: the slot carries a diagnostic on its stderr stream and a
// recorded exit code of 127, so callers observe the same lifecycle as for
// a child whose exec failed after fork.
func (s *Supervisor) Start(path string, argv []string) (int, error) {
	if path == "" || len(argv) == 0 {
		return -1, ErrInvalidArgument
	}

	handle, err := s.claim()
	if err != nil {
		return -1, err
	}

	var outPipe, errPipe [2]int
	if err := makePipe(outPipe[:]); err != nil {
		s.release(handle)
		return -1, fmt.Errorf("supervisor: stdout pipe: %v", err)
	}
	if err := makePipe(errPipe[:]); err != nil {
		closePipe(outPipe[:])
		s.release(handle)
		return -1, fmt.Errorf("supervisor: stderr pipe: %v", err)
	}

	// the write ends go to the child; the parent drains the read ends,
	// which must never block
	unix.SetNonblock(outPipe[0], true)
	unix.SetNonblock(errPipe[0], true)

	stdout := os.NewFile(uintptr(outPipe[1]), "|stdout")
	stderr := os.NewFile(uintptr(errPipe[1]), "|stderr")
	cmd := &exec.Cmd{
		Path:   path,
		Args:   argv,
		Stdout: stdout,
		Stderr: stderr,
	}
	err = cmd.Start()
	if err != nil {
		// exec failed before the child could run; report it the way the
		// child itself would have: a diagnostic on stderr and status 127
		diag := fmt.Sprintf("exec failed: %v path=%s\n", err, path)
		unix.Write(errPipe[1], []byte(diag))
		stdout.Close()
		stderr.Close()
		s.register(handle, 0, path, outPipe[0], errPipe[0], execFailureStatus)
		log.Errorf("%s: unable to exec: %v", label(path, handle), err)
		s.publish(events.Started, label(path, handle))
		s.publish(events.ExitFailed, label(path, handle))
		return handle, nil
	}
	stdout.Close()
	stderr.Close()

	s.register(handle, cmd.Process.Pid, path, outPipe[0], errPipe[0], ExitRunning)
	log.Debugf("%s: started pid %d", label(path, handle), cmd.Process.Pid)
	s.publish(events.Started, label(path, handle))
	return handle, nil
}

// claim reserves the lowest-index free slot so concurrent Starts cannot
// race for it. The slot is not observable as running until register.
func (s *Supervisor) claim() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.slots {
		if !s.slots[i].inUse {
			s.slots[i] = slot{
				inUse:    true,
				stdoutFD: fdClosed,
				stderrFD: fdClosed,
				exitCode: ExitError,
			}
			return i, nil
		}
	}
	return -1, ErrCapacityExhausted
}

// release returns a claimed slot after a failed Start.
func (s *Supervisor) release(handle int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[handle].inUse = false
}

func (s *Supervisor) register(handle, pid int, name string, stdoutFD, stderrFD, exitCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := &s.slots[handle]
	sl.pid = pid
	sl.name = name
	sl.stdoutFD = stdoutFD
	sl.stderrFD = stderrFD
	sl.exitCode = exitCode
}

// makePipe creates a pipe whose ends are close-on-exec so a concurrently
// started child cannot inherit another child's endpoints and hold its
// streams open past exit.
func makePipe(p []int) error {
	if err := unix.Pipe(p); err != nil {
		return err
	}
	unix.CloseOnExec(p[0])
	unix.CloseOnExec(p[1])
	return nil
}

func closePipe(p []int) {
	unix.Close(p[0])
	unix.Close(p[1])
}
