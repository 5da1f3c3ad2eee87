package usb

import (
	"context"

	"github.com/nerrad567/usbflow-core/internal/winreg"
)

// Outcome classifies a direct power-flag write attempt.
type Outcome string

const (
	// OutcomeSuccess means the write was applied; the caller must
	// trigger a snapshot refresh.
	OutcomeSuccess Outcome = "success"
	// OutcomeNeedsElevation means the platform denied access; the caller
	// must hand the request to the elevation coordinator.
	OutcomeNeedsElevation Outcome = "needs_elevation"
	// OutcomeHardError means an unexpected failure; the caller surfaces
	// Detail to the operator and still triggers a refresh.
	OutcomeHardError Outcome = "hard_error"
)

// WriteResult is the outcome of a single direct write.
type WriteResult struct {
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail,omitempty"`
}

// BulkResult is the outcome of a disable-all pass.
type BulkResult struct {
	// NeedsElevation is set when the first attempted write was denied;
	// the whole batch is then handed to the coordinator instead of
	// being counted as individual failures.
	NeedsElevation bool `json:"needs_elevation"`
	Attempted      int  `json:"attempted"`
	Failures       int  `json:"failures"`
}

// Executor performs direct power-flag writes and classifies their
// failures. It never escalates by itself; callers route
// OutcomeNeedsElevation to the elevation coordinator.
type Executor struct {
	reg     winreg.Registry
	history HistoryRepository
	logger  Logger
}

// NewExecutor creates an executor over reg. history may be nil when
// auditing is not wanted.
func NewExecutor(reg winreg.Registry, history HistoryRepository) *Executor {
	return &Executor{
		reg:     reg,
		history: history,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the executor.
func (e *Executor) SetLogger(logger Logger) {
	e.logger = logger
}

// WritePowerFlag writes the power flag at path: 0 when disabling sleep,
// 1 when enabling. Only the platform's access-denied condition maps to
// OutcomeNeedsElevation; every other failure is a hard error carrying
// its detail.
func (e *Executor) WritePowerFlag(ctx context.Context, path string, disable bool) WriteResult {
	var value uint32 = 1
	if disable {
		value = 0
	}

	res := WriteResult{Outcome: OutcomeSuccess}
	err := e.reg.SetDWord(path, PowerValueName, value)
	switch {
	case err == nil:
	case winreg.IsAccessDenied(err):
		res = WriteResult{Outcome: OutcomeNeedsElevation}
		e.logger.Info("write denied, elevation required", "path", path)
	default:
		res = WriteResult{Outcome: OutcomeHardError, Detail: err.Error()}
		e.logger.Error("write failed", "path", path, "error", err)
	}

	e.record(ctx, MutationRecord{
		KeyPath: path,
		Action:  ActionSet,
		Disable: disable,
		Outcome: outcomeRecord(res.Outcome),
		Detail:  res.Detail,
	})
	return res
}

// DisableAll attempts a direct disable write on every path, best-effort:
// individual failures are counted, never aborted on. One exception: if
// the first attempted write is access-denied, the whole batch is
// reported as needing elevation rather than as N failures.
func (e *Executor) DisableAll(ctx context.Context, paths []string) BulkResult {
	res := BulkResult{}
	for i, path := range paths {
		err := e.reg.SetDWord(path, PowerValueName, 0)
		if err == nil {
			res.Attempted++
			continue
		}
		if i == 0 && winreg.IsAccessDenied(err) {
			res.NeedsElevation = true
			e.logger.Info("bulk disable denied on first write, elevation required", "paths", len(paths))
			e.record(ctx, MutationRecord{
				KeyPath: "*",
				Action:  ActionDisableAll,
				Disable: true,
				Outcome: OutcomeRecordNeedsElevation,
			})
			return res
		}
		res.Attempted++
		res.Failures++
		e.logger.Warn("bulk disable write failed", "path", path, "error", err)
	}

	outcome := OutcomeRecordSuccess
	if res.Failures > 0 {
		outcome = OutcomeRecordError
	}
	e.record(ctx, MutationRecord{
		KeyPath: "*",
		Action:  ActionDisableAll,
		Disable: true,
		Outcome: outcome,
	})
	return res
}

// record persists a history entry best-effort; audit failures never
// affect the mutation outcome.
func (e *Executor) record(ctx context.Context, rec MutationRecord) {
	if e.history == nil {
		return
	}
	if err := e.history.Record(ctx, rec); err != nil {
		e.logger.Warn("recording mutation history failed", "error", err)
	}
}

func outcomeRecord(o Outcome) string {
	switch o {
	case OutcomeSuccess:
		return OutcomeRecordSuccess
	case OutcomeNeedsElevation:
		return OutcomeRecordNeedsElevation
	default:
		return OutcomeRecordError
	}
}
