package usb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/usbflow-core/internal/winreg"
)

// memHistory is an in-memory HistoryRepository for tests.
type memHistory struct {
	mu      sync.Mutex
	records []MutationRecord
}

func (h *memHistory) Record(_ context.Context, rec MutationRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec.CreatedAt = time.Now().UTC()
	h.records = append(h.records, rec)
	return nil
}

func (h *memHistory) Recent(_ context.Context, limit int) ([]MutationRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]MutationRecord, 0, limit)
	for i := len(h.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.records[i])
	}
	return out, nil
}

func (h *memHistory) Prune(context.Context, time.Duration) (int64, error) { return 0, nil }

func (h *memHistory) last(t *testing.T) MutationRecord {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) == 0 {
		t.Fatal("no history records")
	}
	return h.records[len(h.records)-1]
}

func TestWritePowerFlagSuccess(t *testing.T) {
	m := winreg.NewMem()
	params := seedDevice(m, `VID_1\1`, nil, uint32p(1))
	hist := &memHistory{}
	e := NewExecutor(m, hist)

	res := e.WritePowerFlag(context.Background(), params, true)
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %q, want success", res.Outcome)
	}

	v, err := m.ReadDWord(params, PowerValueName)
	if err != nil || v != 0 {
		t.Errorf("flag = %d, %v; want 0, nil", v, err)
	}

	rec := hist.last(t)
	if rec.Action != ActionSet || rec.Outcome != OutcomeRecordSuccess || !rec.Disable {
		t.Errorf("history record = %+v", rec)
	}
}

func TestWritePowerFlagEnable(t *testing.T) {
	m := winreg.NewMem()
	params := seedDevice(m, `VID_1\1`, nil, uint32p(0))
	e := NewExecutor(m, nil)

	res := e.WritePowerFlag(context.Background(), params, false)
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %q, want success", res.Outcome)
	}
	if v, _ := m.ReadDWord(params, PowerValueName); v != 1 {
		t.Errorf("flag = %d, want 1", v)
	}
}

func TestWritePowerFlagNeedsElevation(t *testing.T) {
	m := winreg.NewMem()
	params := seedDevice(m, `VID_1\1`, nil, uint32p(1))
	m.Deny(params)
	hist := &memHistory{}
	e := NewExecutor(m, hist)

	res := e.WritePowerFlag(context.Background(), params, true)
	if res.Outcome != OutcomeNeedsElevation {
		t.Fatalf("outcome = %q, want needs_elevation", res.Outcome)
	}
	if res.Detail != "" {
		t.Errorf("needs-elevation must not carry raw error detail, got %q", res.Detail)
	}
	if rec := hist.last(t); rec.Outcome != OutcomeRecordNeedsElevation {
		t.Errorf("history outcome = %q", rec.Outcome)
	}
}

func TestWritePowerFlagHardError(t *testing.T) {
	m := winreg.NewMem()
	// Key absent entirely: not access denied, so it must be a hard error.
	e := NewExecutor(m, &memHistory{})

	res := e.WritePowerFlag(context.Background(), `SYSTEM\Nope\Device Parameters`, true)
	if res.Outcome != OutcomeHardError {
		t.Fatalf("outcome = %q, want hard_error", res.Outcome)
	}
	if res.Detail == "" {
		t.Error("hard error must carry detail for the operator")
	}
}

func TestDisableAllCountsFailures(t *testing.T) {
	m := winreg.NewMem()
	p1 := seedDevice(m, `VID_1\ok1`, nil, uint32p(1))
	p2 := seedDevice(m, `VID_2\ok2`, nil, uint32p(1))
	e := NewExecutor(m, &memHistory{})

	// Two missing paths fail with hard errors; the first path succeeds,
	// so the batch is not escalated.
	paths := []string{p1, `SYSTEM\Missing\1`, p2, `SYSTEM\Missing\2`}
	res := e.DisableAll(context.Background(), paths)

	if res.NeedsElevation {
		t.Fatal("batch must not escalate when the first write succeeds")
	}
	if res.Failures != 2 {
		t.Errorf("failures = %d, want 2", res.Failures)
	}
	if res.Attempted != 4 {
		t.Errorf("attempted = %d, want 4", res.Attempted)
	}
	for _, p := range []string{p1, p2} {
		if v, _ := m.ReadDWord(p, PowerValueName); v != 0 {
			t.Errorf("flag at %q = %d, want 0", p, v)
		}
	}
}

func TestDisableAllFirstDeniedEscalates(t *testing.T) {
	m := winreg.NewMem()
	locked := seedDevice(m, `VID_1\locked`, nil, uint32p(1))
	open := seedDevice(m, `VID_2\open`, nil, uint32p(1))
	m.Deny(locked)
	hist := &memHistory{}
	e := NewExecutor(m, hist)

	res := e.DisableAll(context.Background(), []string{locked, open})
	if !res.NeedsElevation {
		t.Fatal("first-write denial must escalate the whole batch")
	}
	if res.Failures != 0 {
		t.Errorf("failures = %d, want 0 on escalation", res.Failures)
	}
	// The batch short-circuits: the open device is left untouched.
	if v, _ := m.ReadDWord(open, PowerValueName); v != 1 {
		t.Errorf("open device flag = %d, want untouched 1", v)
	}
	if rec := hist.last(t); rec.Action != ActionDisableAll || rec.Outcome != OutcomeRecordNeedsElevation {
		t.Errorf("history record = %+v", rec)
	}
}

func TestDisableAllLaterDenialCountsAsFailure(t *testing.T) {
	m := winreg.NewMem()
	open := seedDevice(m, `VID_1\open`, nil, uint32p(1))
	locked := seedDevice(m, `VID_2\locked`, nil, uint32p(1))
	m.Deny(locked)
	e := NewExecutor(m, &memHistory{})

	res := e.DisableAll(context.Background(), []string{open, locked})
	if res.NeedsElevation {
		t.Fatal("denial after the first write must not escalate")
	}
	if res.Failures != 1 {
		t.Errorf("failures = %d, want 1", res.Failures)
	}
}

func TestDisableAllEmpty(t *testing.T) {
	e := NewExecutor(winreg.NewMem(), nil)
	res := e.DisableAll(context.Background(), nil)
	if res.NeedsElevation || res.Failures != 0 || res.Attempted != 0 {
		t.Errorf("empty batch result = %+v", res)
	}
}
