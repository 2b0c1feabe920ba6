package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRecordCycle(t *testing.T) {
	m := New()
	m.RecordCycle("signature", 3, 1, 500*time.Millisecond)
	m.RecordCycle("specification", 0, 0, 200*time.Millisecond)

	snap := m.Snapshot()
	if snap.CyclesRun != 2 || snap.CyclesEmpty != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.CommandsDropped != 1 {
		t.Errorf("dropped = %d", snap.CommandsDropped)
	}
	if snap.TotalCycleTime != 700*time.Millisecond {
		t.Errorf("total cycle time = %v", snap.TotalCycleTime)
	}
	if snap.PerAspect["signature"] != 1 || snap.PerAspect["specification"] != 1 {
		t.Errorf("per-aspect = %v", snap.PerAspect)
	}
}

func TestRecordFailure(t *testing.T) {
	m := New()
	m.RecordFailure("implementation")

	snap := m.Snapshot()
	if snap.CyclesRun != 1 || snap.CyclesFailed != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestRecordApplyAndTokens(t *testing.T) {
	m := New()
	m.RecordApply(5, 1, 2)
	m.RecordApply(3, 0, 0)
	m.RecordTokens(1000, 400)

	snap := m.Snapshot()
	if snap.CommandsApplied != 8 || snap.CommandsSkipped != 1 || snap.FunctionsCreated != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.InputTokens != 1000 || snap.OutputTokens != 400 {
		t.Errorf("tokens = %d/%d", snap.InputTokens, snap.OutputTokens)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	m := New()
	m.RecordCycle("signature", 1, 0, time.Millisecond)
	snap := m.Snapshot()
	snap.PerAspect["signature"] = 99

	if m.Snapshot().PerAspect["signature"] != 1 {
		t.Error("snapshot map aliases the live counters")
	}
}

func TestSnapshotPassesByValue(t *testing.T) {
	m := New()
	m.RecordTokens(10, 5)

	retained := m.Snapshot()
	dup := retained
	dup.InputTokens = 999
	if retained.InputTokens != 10 {
		t.Errorf("retained.InputTokens = %d after copying", retained.InputTokens)
	}

	m.RecordTokens(1, 1)
	if retained.InputTokens != 10 || retained.OutputTokens != 5 {
		t.Errorf("retained snapshot tracks live counters: %+v", retained)
	}
}

func TestJSON(t *testing.T) {
	m := New()
	m.RecordCycle("signature", 2, 0, time.Second)

	data, err := m.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["cycles_run"].(float64) != 1 {
		t.Errorf("cycles_run = %v", decoded["cycles_run"])
	}
}

func TestPrintSummary(t *testing.T) {
	m := New()
	m.RecordCycle("signature", 2, 1, time.Second)
	m.RecordApply(2, 0, 1)

	var buf bytes.Buffer
	m.PrintSummary(&buf)
	out := buf.String()
	for _, want := range []string{"1 run", "2 applied", "1 dropped", "1 auto-created", "edits to signature: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestConcurrentRecording(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordCycle("signature", 1, 0, time.Millisecond)
				m.RecordApply(1, 0, 0)
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.CyclesRun != 1000 || snap.CommandsApplied != 1000 {
		t.Errorf("snapshot = %+v", snap)
	}
}
