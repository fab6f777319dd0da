package automation

import (
	"fmt"
	"sync"
	"time"

	"github.com/uma-tools/uma-assistant/internal/events"
	"github.com/uma-tools/uma-assistant/internal/logging"
)

// State is the lifecycle state of an automation script.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateError   State = "error"
)

// Script is one automation behaviour driven by a Runner. ExecuteStep is
// called repeatedly while running; returning an error puts the runner into
// the error state.
type Script interface {
	Name() string
	Setup(params map[string]interface{}) error
	ExecuteStep() error
	Cleanup()
}

// pauseCheckInterval is how often a paused loop re-checks its state.
const pauseCheckInterval = 100 * time.Millisecond

// Runner drives a Script through the Stopped/Running/Paused/Error state
// machine. Transitions are guarded: Pause is only valid from Running,
// Resume only from Paused; Stop always resets to Stopped and runs Cleanup
// exactly once per run.
type Runner struct {
	script Script
	bus    events.EventBus
	logger *logging.Logger

	mu           sync.Mutex
	state        State
	stepInterval time.Duration
	maxErrors    int
	stepErrors   int
	cleanedUp    bool
	stopCh       chan struct{}
	done         chan struct{}
}

// NewRunner creates a stopped runner for the given script.
func NewRunner(script Script, bus events.EventBus) *Runner {
	return &Runner{
		script:       script,
		bus:          bus,
		logger:       logging.NewLogger(fmt.Sprintf("automation.%s", script.Name())),
		state:        StateStopped,
		stepInterval: 1 * time.Second,
		maxErrors:    1,
	}
}

// SetStepInterval sets the pause between successful steps.
func (r *Runner) SetStepInterval(interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if interval > 0 {
		r.stepInterval = interval
	}
}

// SetMaxConsecutiveErrors sets how many step failures in a row are
// tolerated before the runner enters the error state.
func (r *Runner) SetMaxConsecutiveErrors(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > 0 {
		r.maxErrors = n
	}
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start runs Setup and launches the step loop. Starting from any state but
// Stopped or Error fails.
func (r *Runner) Start(params map[string]interface{}) error {
	r.mu.Lock()
	if r.state == StateRunning || r.state == StatePaused {
		r.mu.Unlock()
		return fmt.Errorf("%s is already running", r.script.Name())
	}

	if err := r.script.Setup(params); err != nil {
		r.setStateLocked(StateError)
		r.mu.Unlock()
		return fmt.Errorf("setup failed: %w", err)
	}

	r.stepErrors = 0
	r.cleanedUp = false
	r.stopCh = make(chan struct{})
	r.done = make(chan struct{})
	stopCh, done := r.stopCh, r.done
	r.setStateLocked(StateRunning)
	r.mu.Unlock()

	r.logger.Info("automation started")
	go r.run(stopCh, done)
	return nil
}

// Stop always resets the runner to Stopped and invokes the script's Cleanup
// exactly once, regardless of the prior state.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopCh != nil {
		select {
		case <-r.stopCh:
			// already signalled
		default:
			close(r.stopCh)
		}
	}
	done := r.done
	r.mu.Unlock()

	if done != nil {
		<-done
	}

	r.mu.Lock()
	r.setStateLocked(StateStopped)
	cleanup := !r.cleanedUp
	r.cleanedUp = true
	r.mu.Unlock()

	if cleanup {
		r.script.Cleanup()
	}
	r.logger.Info("automation stopped")
}

// Pause suspends stepping. Only valid from Running.
func (r *Runner) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRunning {
		return fmt.Errorf("cannot pause from state %s", r.state)
	}
	r.setStateLocked(StatePaused)
	r.logger.Info("automation paused")
	return nil
}

// Resume continues stepping. Only valid from Paused.
func (r *Runner) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StatePaused {
		return fmt.Errorf("cannot resume from state %s", r.state)
	}
	r.setStateLocked(StateRunning)
	r.logger.Info("automation resumed")
	return nil
}

// run is the step loop. It exits on stop or when consecutive step failures
// exceed the configured limit.
func (r *Runner) run(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		if r.State() == StatePaused {
			select {
			case <-stopCh:
				return
			case <-time.After(pauseCheckInterval):
			}
			continue
		}

		if err := r.executeStep(); err != nil {
			r.mu.Lock()
			r.stepErrors++
			exceeded := r.stepErrors >= r.maxErrors
			if exceeded {
				r.setStateLocked(StateError)
			}
			r.mu.Unlock()

			r.logger.Error("automation step failed", err)
			if exceeded {
				r.bus.Publish(events.NewErrorEvent("automation", r.script.Name(), err))
				return
			}
		} else {
			r.mu.Lock()
			r.stepErrors = 0
			r.mu.Unlock()
		}

		select {
		case <-stopCh:
			return
		case <-time.After(r.interval()):
		}
	}
}

// executeStep runs one script step with panic containment.
func (r *Runner) executeStep() (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("step panicked: %v", rec)
		}
	}()
	return r.script.ExecuteStep()
}

func (r *Runner) interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stepInterval
}

// setStateLocked transitions the state and publishes the change. Caller
// holds r.mu.
func (r *Runner) setStateLocked(next State) {
	if r.state == next {
		return
	}
	prev := r.state
	r.state = next
	r.bus.Publish(events.NewAutomationStateChangedEvent(r.script.Name(), string(prev), string(next)))
}
