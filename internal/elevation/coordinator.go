package elevation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/usbflow-core/internal/usb"
)

// State represents the coordinator's position in the elevation lifecycle.
type State string

const (
	StateIdle           State = "idle"
	StateLaunching      State = "launching"
	StateAwaitingResult State = "awaiting_result"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
	StateTimedOut       State = "timed_out"
)

var (
	// ErrOperationInProgress rejects a new request while one is in
	// flight. Requests are never queued.
	ErrOperationInProgress = errors.New("elevation: operation already in progress")

	// ErrLaunchFailed means the helper could not be spawned.
	ErrLaunchFailed = errors.New("elevation: helper launch failed")

	// ErrDeclined means the operator declined the privilege prompt.
	// Informational, not a fault.
	ErrDeclined = errors.New("elevation: request declined by operator")
)

// Launcher spawns the privileged helper carrying one instruction.
// Launch returns once the spawn outcome is known; it never waits for
// the helper to finish.
type Launcher interface {
	Launch(ctx context.Context, script string) error
}

// Refresher triggers a snapshot rescan after a terminal transition.
type Refresher interface {
	RequestRefresh()
}

// Logger is the logging interface used by the coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// helperResult is the JSON object the helper writes before exiting.
type helperResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Request describes one privileged operation.
type Request struct {
	// BuildScript produces the helper instruction given the result
	// artifact path the helper must write to.
	BuildScript func(resultPath string) string

	// SuccessLabel is the human-readable label composed into the status
	// text on completion.
	SuccessLabel string

	// Audit fields recorded against the mutation history.
	Action  string
	KeyPath string
	Disable bool
}

// StatusEvent is delivered on every state transition. Terminal events
// carry the composed status text; launch failures carry Err.
type StatusEvent struct {
	Token  string    `json:"token"`
	State  State     `json:"state"`
	Status string    `json:"status"`
	Err    error     `json:"-"`
	At     time.Time `json:"at"`
}

// PendingInfo describes the in-flight operation, if any.
type PendingInfo struct {
	Token     string    `json:"token"`
	State     State     `json:"state"`
	Label     string    `json:"label"`
	StartedAt time.Time `json:"started_at"`
}

// Config tunes the coordinator's polling behaviour.
type Config struct {
	// PollInterval is how often the result artifact is checked for.
	PollInterval time.Duration

	// Timeout bounds the wait for the artifact. The helper itself is
	// never killed; at timeout only the waiting side is abandoned.
	Timeout time.Duration
}

// DefaultConfig returns the coordinator defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval: 400 * time.Millisecond,
		Timeout:      75 * time.Second,
	}
}

// eventBufferSize bounds the status event channel; slow consumers lose
// intermediate events rather than blocking a transition.
const eventBufferSize = 16

// Coordinator owns the single in-flight privileged operation: launch,
// poll, timeout, parse, cleanup, reconcile. At most one operation may
// exist system-wide at any time; a second Begin while one is in flight
// is rejected with ErrOperationInProgress.
//
// All public methods are thread-safe.
type Coordinator struct {
	config    Config
	launcher  Launcher
	refresher Refresher
	history   usb.HistoryRepository
	logger    Logger

	mu      sync.Mutex
	state   State
	pending *pendingOp

	events chan StatusEvent
	wg     sync.WaitGroup
}

type pendingOp struct {
	token     string
	artifact  string
	label     string
	req       Request
	startedAt time.Time
	cancel    context.CancelFunc
}

// NewCoordinator creates a coordinator. history may be nil when
// auditing is not wanted.
func NewCoordinator(cfg Config, launcher Launcher, refresher Refresher, history usb.HistoryRepository) *Coordinator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Coordinator{
		config:    cfg,
		launcher:  launcher,
		refresher: refresher,
		history:   history,
		logger:    noopLogger{},
		state:     StateIdle,
		events:    make(chan StatusEvent, eventBufferSize),
	}
}

// SetLogger sets the logger for the coordinator.
func (c *Coordinator) SetLogger(logger Logger) {
	c.logger = logger
}

// Events returns the status event stream. Events are dropped, not
// blocked on, when the consumer falls behind.
func (c *Coordinator) Events() <-chan StatusEvent {
	return c.events
}

// State returns the current coordinator state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns the in-flight operation, if any.
func (c *Coordinator) Pending() (PendingInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return PendingInfo{}, false
	}
	return PendingInfo{
		Token:     c.pending.token,
		State:     c.state,
		Label:     c.pending.label,
		StartedAt: c.pending.startedAt,
	}, true
}

// Begin starts a privileged operation and returns its correlation
// token. The result artifact path is allocated fresh for each request:
// a unique temporary file is created, then immediately removed so the
// path itself is free of contents before the helper runs.
func (c *Coordinator) Begin(ctx context.Context, req Request) (string, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return "", ErrOperationInProgress
	}
	c.state = StateLaunching
	c.mu.Unlock()

	artifact, err := allocateArtifactPath()
	if err != nil {
		c.toIdle()
		return "", fmt.Errorf("allocating result artifact: %w", err)
	}

	token := uuid.New().String()
	c.emit(StatusEvent{Token: token, State: StateLaunching, Status: "Requesting elevation...", At: time.Now().UTC()})
	c.logger.Info("launching privileged helper", "token", token, "action", req.Action)

	if err := c.launcher.Launch(ctx, req.BuildScript(artifact)); err != nil {
		os.Remove(artifact)
		c.toIdle()

		if errors.Is(err, ErrDeclined) {
			c.record(req, token, usb.OutcomeRecordError, "elevation declined")
			c.emit(StatusEvent{Token: token, State: StateFailed, Status: "Elevation request was declined", Err: err, At: time.Now().UTC()})
			c.logger.Info("elevation declined by operator", "token", token)
			return "", err
		}

		c.record(req, token, usb.OutcomeRecordError, "helper launch failed")
		launchErr := fmt.Errorf("%w: %v", ErrLaunchFailed, err)
		c.emit(StatusEvent{Token: token, State: StateFailed, Status: "Elevation request failed", Err: launchErr, At: time.Now().UTC()})
		c.logger.Error("helper launch failed", "token", token, "error", err)
		return "", launchErr
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	op := &pendingOp{
		token:     token,
		artifact:  artifact,
		label:     req.SuccessLabel,
		req:       req,
		startedAt: time.Now(),
		cancel:    cancel,
	}

	c.mu.Lock()
	c.state = StateAwaitingResult
	c.pending = op
	c.mu.Unlock()
	c.emit(StatusEvent{Token: token, State: StateAwaitingResult, Status: "Waiting for elevated helper...", At: time.Now().UTC()})

	c.wg.Add(1)
	go c.poll(pollCtx, op)

	return token, nil
}

// Close cancels any in-flight polling and waits for it to stop. The
// helper process, if running, is left to finish on its own.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.pending != nil {
		c.pending.cancel()
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// poll checks for the result artifact at a fixed interval until it
// appears, the timeout elapses, or the coordinator is closed.
func (c *Coordinator) poll(ctx context.Context, op *pendingOp) {
	defer c.wg.Done()
	defer op.cancel()

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.clearPending(op)
			return

		case <-ticker.C:
			if _, err := os.Stat(op.artifact); err == nil {
				c.finish(op)
				return
			}

			if time.Since(op.startedAt) > c.config.Timeout {
				// The helper is abandoned, not killed; its artifact path
				// is never revisited, so any late result is orphaned.
				c.clearPending(op)
				c.record(op.req, op.token, usb.OutcomeRecordTimeout, "")
				c.emit(StatusEvent{
					Token:  op.token,
					State:  StateTimedOut,
					Status: "Elevated operation timed out",
					At:     time.Now().UTC(),
				})
				c.logger.Warn("elevated operation timed out",
					"token", op.token,
					"timeout", c.config.Timeout,
				)
				c.requestRefresh()
				return
			}
		}
	}
}

// finish parses the result artifact and performs the terminal
// transition. The artifact is deleted best-effort.
func (c *Coordinator) finish(op *pendingOp) {
	result, err := readResult(op.artifact)
	os.Remove(op.artifact)
	c.clearPending(op)

	switch {
	case err != nil:
		c.record(op.req, op.token, usb.OutcomeRecordError, "unreadable helper result")
		c.emit(StatusEvent{
			Token:  op.token,
			State:  StateFailed,
			Status: "Elevated operation returned an unreadable result",
			At:     time.Now().UTC(),
		})
		c.logger.Error("unreadable helper result", "token", op.token, "error", err)

	case result.Success:
		c.record(op.req, op.token, usb.OutcomeRecordSuccess, result.Message)
		c.emit(StatusEvent{
			Token:  op.token,
			State:  StateCompleted,
			Status: composeStatus(op.label, result.Message),
			At:     time.Now().UTC(),
		})
		c.logger.Info("elevated operation completed", "token", op.token)

	default:
		c.record(op.req, op.token, usb.OutcomeRecordError, result.Message)
		c.emit(StatusEvent{
			Token:  op.token,
			State:  StateFailed,
			Status: composeStatus("Elevated operation failed", result.Message),
			At:     time.Now().UTC(),
		})
		c.logger.Warn("elevated operation failed", "token", op.token, "message", result.Message)
	}

	c.requestRefresh()
}

// clearPending returns the coordinator to Idle if op is still the
// in-flight operation.
func (c *Coordinator) clearPending(op *pendingOp) {
	c.mu.Lock()
	if c.pending == op {
		c.pending = nil
		c.state = StateIdle
	}
	c.mu.Unlock()
}

func (c *Coordinator) toIdle() {
	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
}

func (c *Coordinator) requestRefresh() {
	if c.refresher != nil {
		c.refresher.RequestRefresh()
	}
}

func (c *Coordinator) emit(ev StatusEvent) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("status event dropped", "token", ev.Token, "state", ev.State)
	}
}

// record persists the operation outcome best-effort.
func (c *Coordinator) record(req Request, token, outcome, detail string) {
	if c.history == nil {
		return
	}
	keyPath := req.KeyPath
	if keyPath == "" {
		keyPath = "*"
	}
	rec := usb.MutationRecord{
		KeyPath: keyPath,
		Action:  req.Action,
		Disable: req.Disable,
		Outcome: outcome,
		Detail:  detail,
		Token:   token,
	}
	if err := c.history.Record(context.Background(), rec); err != nil {
		c.logger.Warn("recording elevated mutation failed", "token", token, "error", err)
	}
}

// allocateArtifactPath obtains a guaranteed-unused temporary path and
// removes the placeholder so the helper finds no stale contents.
func allocateArtifactPath() (string, error) {
	f, err := os.CreateTemp("", "usbflow-elevate-*.json")
	if err != nil {
		return "", err
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return "", err
	}
	if err := os.Remove(path); err != nil {
		return "", err
	}
	return path, nil
}

// readResult parses the helper's UTF-8 JSON result, tolerating a
// leading byte-order mark.
func readResult(path string) (helperResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return helperResult{}, fmt.Errorf("reading result artifact: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	var result helperResult
	if err := json.Unmarshal(data, &result); err != nil {
		return helperResult{}, fmt.Errorf("parsing result artifact: %w", err)
	}
	return result, nil
}

// composeStatus appends the helper message to the success label in
// parentheses, when there is one.
func composeStatus(label, message string) string {
	if message == "" {
		return label
	}
	return label + " (" + message + ")"
}
