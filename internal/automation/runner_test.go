package automation

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/uma-tools/uma-assistant/internal/events"
)

// fakeScript counts lifecycle calls and can be told to fail steps.
type fakeScript struct {
	mu       sync.Mutex
	setups   int
	steps    int
	cleanups int
	stepErr  error
}

func (s *fakeScript) Name() string { return "fake" }

func (s *fakeScript) Setup(params map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setups++
	return nil
}

func (s *fakeScript) ExecuteStep() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps++
	return s.stepErr
}

func (s *fakeScript) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanups++
}

func (s *fakeScript) counts() (setups, steps, cleanups int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setups, s.steps, s.cleanups
}

func waitState(t *testing.T, r *Runner, want State, timeout time.Duration) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if r.State() == want {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return r.State() == want
}

func TestRunnerStartStop(t *testing.T) {
	bus := events.NewBus(100)
	defer bus.Stop()

	script := &fakeScript{}
	runner := NewRunner(script, bus)
	runner.SetStepInterval(10 * time.Millisecond)

	if runner.State() != StateStopped {
		t.Fatalf("New runner should be stopped, got %s", runner.State())
	}

	if err := runner.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if runner.State() != StateRunning {
		t.Fatalf("Expected running, got %s", runner.State())
	}

	// Double start is rejected.
	if err := runner.Start(nil); err == nil {
		t.Error("Expected error starting an already-running script")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, steps, _ := script.counts(); steps >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	runner.Stop()
	if runner.State() != StateStopped {
		t.Errorf("Expected stopped, got %s", runner.State())
	}

	setups, steps, cleanups := script.counts()
	if setups != 1 {
		t.Errorf("Expected 1 setup, got %d", setups)
	}
	if steps < 2 {
		t.Errorf("Expected at least 2 steps, got %d", steps)
	}
	if cleanups != 1 {
		t.Errorf("Expected exactly 1 cleanup, got %d", cleanups)
	}

	// Stop is idempotent and never double-cleans.
	runner.Stop()
	if _, _, cleanups := script.counts(); cleanups != 1 {
		t.Errorf("Second Stop must not clean up again, got %d", cleanups)
	}
}

func TestRunnerPauseResumeGuards(t *testing.T) {
	bus := events.NewBus(100)
	defer bus.Stop()

	script := &fakeScript{}
	runner := NewRunner(script, bus)
	runner.SetStepInterval(10 * time.Millisecond)

	// Pause/Resume invalid from Stopped.
	if err := runner.Pause(); err == nil {
		t.Error("Pause from stopped should fail")
	}
	if err := runner.Resume(); err == nil {
		t.Error("Resume from stopped should fail")
	}

	if err := runner.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer runner.Stop()

	if err := runner.Pause(); err != nil {
		t.Fatalf("Pause from running failed: %v", err)
	}
	if runner.State() != StatePaused {
		t.Fatalf("Expected paused, got %s", runner.State())
	}

	// Pause is not valid twice.
	if err := runner.Pause(); err == nil {
		t.Error("Pause from paused should fail")
	}

	// While paused, no steps execute.
	_, before, _ := script.counts()
	time.Sleep(250 * time.Millisecond)
	if _, after, _ := script.counts(); after != before {
		t.Errorf("Steps executed while paused: %d -> %d", before, after)
	}

	if err := runner.Resume(); err != nil {
		t.Fatalf("Resume from paused failed: %v", err)
	}
	if runner.State() != StateRunning {
		t.Errorf("Expected running, got %s", runner.State())
	}
}

func TestRunnerEntersErrorState(t *testing.T) {
	bus := events.NewBus(100)
	defer bus.Stop()

	script := &fakeScript{stepErr: errors.New("step broke")}
	runner := NewRunner(script, bus)
	runner.SetStepInterval(10 * time.Millisecond)

	if err := runner.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if !waitState(t, runner, StateError, 2*time.Second) {
		t.Fatalf("Runner never entered error state, got %s", runner.State())
	}

	// Stop from error still resets and cleans up once.
	runner.Stop()
	if runner.State() != StateStopped {
		t.Errorf("Expected stopped after error, got %s", runner.State())
	}
	if _, _, cleanups := script.counts(); cleanups != 1 {
		t.Errorf("Expected 1 cleanup, got %d", cleanups)
	}
}

func TestRunnerToleratesErrorsBelowLimit(t *testing.T) {
	bus := events.NewBus(100)
	defer bus.Stop()

	script := &fakeScript{stepErr: errors.New("flaky")}
	runner := NewRunner(script, bus)
	runner.SetStepInterval(10 * time.Millisecond)
	runner.SetMaxConsecutiveErrors(3)

	if err := runner.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// After two failures, clear the error; the runner must keep going.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, steps, _ := script.counts(); steps >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	script.mu.Lock()
	script.stepErr = nil
	script.mu.Unlock()

	time.Sleep(100 * time.Millisecond)
	if runner.State() != StateRunning {
		t.Errorf("Runner should survive errors below the limit, got %s", runner.State())
	}

	runner.Stop()
}

func TestRunnerRestartAfterStop(t *testing.T) {
	bus := events.NewBus(100)
	defer bus.Stop()

	script := &fakeScript{}
	runner := NewRunner(script, bus)
	runner.SetStepInterval(10 * time.Millisecond)

	if err := runner.Start(nil); err != nil {
		t.Fatalf("First start failed: %v", err)
	}
	runner.Stop()

	if err := runner.Start(nil); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	runner.Stop()

	setups, _, cleanups := script.counts()
	if setups != 2 || cleanups != 2 {
		t.Errorf("Expected 2 setups and 2 cleanups, got %d/%d", setups, cleanups)
	}
}
