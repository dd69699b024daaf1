package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStopGraceful(t *testing.T) {
	s := New()
	handle := startShell(t, s, "trap 'exit 0' TERM; while true; do sleep 0.1; done")
	// let the shell install its trap
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	if err := s.Stop(handle); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > graceInterval*graceRetries {
		t.Errorf("graceful stop took %v, longer than the grace period", elapsed)
	}
	_, _, code := drainChild(t, s, handle)
	assert.Equal(t, 0, code, "trap handler should have exited 0")
}

func TestStopForceful(t *testing.T) {
	s := New()
	handle := startShell(t, s, "trap '' TERM; while true; do sleep 0.1; done")
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	if err := s.Stop(handle); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < graceInterval*graceRetries {
		t.Errorf("forceful stop returned in %v, before the grace period expired", elapsed)
	}
	if elapsed > graceInterval*graceRetries+2*time.Second {
		t.Errorf("forceful stop took %v, well past the grace period", elapsed)
	}
	_, _, code := drainChild(t, s, handle)
	assert.Equal(t, 128+9, code, "expected SIGKILL encoded as 137")
}

func TestStopIdempotent(t *testing.T) {
	s := New()
	handle := startShell(t, s, "exit 5")
	for s.IsRunning(handle) {
		time.Sleep(5 * time.Millisecond)
	}

	assert.NoError(t, s.Stop(handle))
	first := s.ExitCode(handle)
	assert.NoError(t, s.Stop(handle))
	assert.Equal(t, first, s.ExitCode(handle),
		"repeated stops must leave the same terminal exit code")
	assert.Equal(t, 5, first)
}

func TestStopDoesNotCloseOutput(t *testing.T) {
	// output buffered in the pipe must survive termination; only readers
	// close the endpoints
	s := New()
	handle := startShell(t, s, "printf lastwords; while true; do sleep 0.1; done")
	time.Sleep(200 * time.Millisecond)

	if err := s.Stop(handle); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	stdout, _, _ := drainChild(t, s, handle)
	assert.Equal(t, "lastwords", stdout)
}

func TestStopInvalidHandle(t *testing.T) {
	s := New()
	assert.Equal(t, ErrInvalidHandle, s.Stop(-1))
	assert.Equal(t, ErrInvalidHandle, s.Stop(Capacity))
}

func TestStopUnusedSlot(t *testing.T) {
	s := New()
	assert.NoError(t, s.Stop(12), "stopping a never-started slot is not an error")
}
