package printing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

type PrintState string

const (
	StateIdle     PrintState = "idle"
	StatePrinting PrintState = "printing"
	StateSuccess  PrintState = "success"
	StateError    PrintState = "error"
)

// RetryPolicy bounds how often a failing send is attempted
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Backoff: 2 * time.Second}

// Status is a snapshot of the dispatcher state machine
type Status struct {
	State     PrintState `json:"state"`
	JobID     string     `json:"jobId,omitempty"`
	DeviceID  string     `json:"deviceId,omitempty"`
	Attempts  int        `json:"attempts"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// DeviceSource yields the currently connected device
type DeviceSource interface {
	Active() (PrinterDevice, io.Writer, error)
}

// Dispatcher runs print jobs one at a time through
// idle -> printing -> success|error
type Dispatcher struct {
	mu         sync.Mutex
	status     Status
	devices    DeviceSource
	transcoder Transcoder
	transport  Transport
	policy     RetryPolicy
	observers  []func(Status)
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
}

func NewDispatcher(devices DeviceSource, transcoder Transcoder, transport Transport, policy RetryPolicy) *Dispatcher {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if policy.Backoff < 0 {
		policy.Backoff = 0
	}
	d := &Dispatcher{
		devices:    devices,
		transcoder: transcoder,
		transport:  transport,
		policy:     policy,
		sleep:      sleepContext,
		now:        time.Now,
	}
	d.status = Status{State: StateIdle, UpdatedAt: d.now()}
	return d
}

// OnStateChange registers an observer called after every transition
func (d *Dispatcher) OnStateChange(observer func(Status)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, observer)
}

func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *Dispatcher) Policy() RetryPolicy {
	return d.policy
}

// Print transcodes src and sends it to the connected device, retrying up to
// the policy's attempt limit with a fixed backoff. A job submitted while
// another is printing fails with ErrPrinterBusy and leaves the state alone.
func (d *Dispatcher) Print(ctx context.Context, jobID, src string) error {
	d.mu.Lock()
	if d.status.State == StatePrinting {
		d.mu.Unlock()
		return ErrPrinterBusy
	}
	d.status = Status{State: StatePrinting, JobID: jobID, UpdatedAt: d.now()}
	d.mu.Unlock()
	d.notify()

	payload, err := d.transcoder.Transcode(src)
	if err != nil {
		slog.Error("Dispatcher: transcoding failed", "job_id", jobID, "error", err)
		d.finish(StateError, 0, "", err)
		return fmt.Errorf("failed to transcode job %s: %w", jobID, err)
	}

	var lastErr error
	var deviceID string
	attempts := 0
	for attempts < d.policy.MaxAttempts {
		if attempts > 0 {
			if err := d.sleep(ctx, d.policy.Backoff); err != nil {
				lastErr = err
				break
			}
		}
		attempts++
		d.recordAttempt(attempts)

		lastErr = d.attempt(ctx, payload, &deviceID)
		if lastErr == nil {
			slog.Info("Dispatcher: print accepted", "job_id", jobID, "device_id", deviceID, "attempts", attempts, "transport", d.transport.Kind())
			d.finish(StateSuccess, attempts, deviceID, nil)
			return nil
		}
		slog.Warn("Dispatcher: print attempt failed", "job_id", jobID, "attempt", attempts, "max_attempts", d.policy.MaxAttempts, "error", lastErr)
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			break
		}
	}

	slog.Error("Dispatcher: print failed", "job_id", jobID, "attempts", attempts, "error", lastErr)
	d.finish(StateError, attempts, deviceID, lastErr)
	return fmt.Errorf("print job %s failed after %d attempt(s): %w", jobID, attempts, lastErr)
}

func (d *Dispatcher) attempt(ctx context.Context, payload []byte, deviceID *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	device, w, err := d.devices.Active()
	switch {
	case err == nil:
		*deviceID = device.ID
	case d.transport.NeedsDevice():
		return err
	default:
		// the host spooler owns the printer
		device, w = PrinterDevice{}, nil
	}
	return d.transport.Send(ctx, Target{Device: device, Writer: w}, payload)
}

func (d *Dispatcher) recordAttempt(n int) {
	d.mu.Lock()
	d.status.Attempts = n
	d.status.UpdatedAt = d.now()
	d.mu.Unlock()
}

func (d *Dispatcher) finish(state PrintState, attempts int, deviceID string, err error) {
	d.mu.Lock()
	d.status.State = state
	d.status.Attempts = attempts
	d.status.DeviceID = deviceID
	d.status.Error = ""
	if err != nil {
		d.status.Error = err.Error()
	}
	d.status.UpdatedAt = d.now()
	d.mu.Unlock()
	d.notify()
}

func (d *Dispatcher) notify() {
	d.mu.Lock()
	status := d.status
	observers := make([]func(Status), len(d.observers))
	copy(observers, d.observers)
	d.mu.Unlock()
	for _, observer := range observers {
		observer(status)
	}
}
