package supervisor

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const shell = "/bin/sh"

func startShell(t *testing.T, s *Supervisor, script string) int {
	t.Helper()
	handle, err := s.Start(shell, []string{"sh", "-c", script})
	if err != nil {
		t.Fatalf("could not start %q: %v", script, err)
	}
	if handle < 0 || handle >= Capacity {
		t.Fatalf("handle %d out of range [0, %d)", handle, Capacity)
	}
	return handle
}

// drainChild keeps polling both streams until the child has terminated
// and each stream has returned 0 twice in a row, which is the documented
// way for a consumer to distinguish definitive EOF from "no data yet".
// Returns the drained streams and the final exit code.
func drainChild(t *testing.T, s *Supervisor, handle int) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	buf := make([]byte, 64)
	outZeros, errZeros := 0, 0
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		running := s.IsRunning(handle)

		n, err := s.ReadStdout(handle, buf)
		if err != nil {
			t.Fatalf("read stdout: %v", err)
		}
		if n > 0 {
			stdout.Write(buf[:n])
			outZeros = 0
		} else if !running {
			outZeros++
		}

		n, err = s.ReadStderr(handle, buf)
		if err != nil {
			t.Fatalf("read stderr: %v", err)
		}
		if n > 0 {
			stderr.Write(buf[:n])
			errZeros = 0
		} else if !running {
			errZeros++
		}

		if !running && outZeros >= 2 && errZeros >= 2 {
			return stdout.String(), stderr.String(), s.ExitCode(handle)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out draining handle %d", handle)
	return "", "", 0
}

func TestEchoAndExit(t *testing.T) {
	s := New()
	handle := startShell(t, s, "printf hello")
	stdout, stderr, code := drainChild(t, s, handle)
	assert.Equal(t, "hello", stdout)
	assert.Equal(t, "", stderr)
	assert.Equal(t, 0, code)
}

func TestStderrIsolation(t *testing.T) {
	s := New()
	handle := startShell(t, s, "printf out; printf err 1>&2; exit 3")
	stdout, stderr, code := drainChild(t, s, handle)
	assert.Equal(t, "out", stdout)
	assert.Equal(t, "err", stderr)
	assert.Equal(t, 3, code)
}

func TestExitCodeMonotonic(t *testing.T) {
	s := New()
	handle := startShell(t, s, "exit 7")
	for s.ExitCode(handle) == ExitRunning {
		time.Sleep(5 * time.Millisecond)
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, 7, s.ExitCode(handle), "exit code must not change once terminal")
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSignalEncoding(t *testing.T) {
	s := New()
	handle := startShell(t, s, "kill -9 $$")
	_, _, code := drainChild(t, s, handle)
	assert.Equal(t, 128+9, code, "expected SIGKILL encoded as 137")
}

func TestSlotReuseAfterDrain(t *testing.T) {
	s := New()
	first := startShell(t, s, "printf hi")
	_, _, code := drainChild(t, s, first)
	assert.Equal(t, 0, code)

	// fully drained and reaped, so the lowest-index slot is free again
	second := startShell(t, s, "printf hi")
	assert.Equal(t, first, second, "expected the reclaimed slot to be reused")
	drainChild(t, s, second)
}

func TestNoByteLossOnFastExit(t *testing.T) {
	// a child that writes more than the pipe buffer and exits immediately;
	// every byte must still be readable after the child is reaped
	const want = 100000
	s := New()
	handle := startShell(t, s, "head -c 100000 /dev/zero")
	stdout, _, code := drainChild(t, s, handle)
	assert.Equal(t, want, len(stdout))
	assert.Equal(t, 0, code)
}

func TestCapacity(t *testing.T) {
	s := New()
	handles := make([]int, 0, Capacity)
	for i := 0; i < Capacity; i++ {
		handle, err := s.Start("/bin/sleep", []string{"sleep", "30"})
		if err != nil {
			t.Fatalf("start %d failed: %v", i, err)
		}
		handles = append(handles, handle)
	}
	defer func() {
		for _, handle := range handles {
			s.Stop(handle)
		}
	}()

	_, err := s.Start("/bin/sleep", []string{"sleep", "30"})
	assert.Equal(t, ErrCapacityExhausted, err)

	// stopping and draining any one child frees its slot for a new start
	victim := handles[17]
	if err := s.Stop(victim); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	drainChild(t, s, victim)
	handle, err := s.Start("/bin/sleep", []string{"sleep", "30"})
	if err != nil {
		t.Fatalf("start after reclaim failed: %v", err)
	}
	handles = append(handles, handle)
}

func TestConcurrentObservers(t *testing.T) {
	// lifecycle observers polling from other goroutines must not lose
	// bytes or see the exit state regress
	s := New()
	handle := startShell(t, s, "head -c 100000 /dev/zero")

	done := make(chan struct{})
	go func() {
		defer close(done)
		sawTerminal := false
		for i := 0; i < 1000; i++ {
			code := s.ExitCode(handle)
			if sawTerminal && code == ExitRunning {
				t.Error("exit state regressed to running")
				return
			}
			if code != ExitRunning {
				sawTerminal = true
			}
			time.Sleep(time.Millisecond)
		}
	}()

	stdout, _, code := drainChild(t, s, handle)
	assert.Equal(t, 100000, len(stdout))
	assert.Equal(t, 0, code)
	s.Stop(handle)
	<-done
}
