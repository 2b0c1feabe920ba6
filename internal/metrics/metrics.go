// Package metrics collects session statistics over generation cycles so the
// serve endpoint and the CLI can report what the session has done so far.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// SessionMetrics accumulates counters for one editing session. Safe for
// concurrent use; the HTTP server records and reads from different
// goroutines. Read through Snapshot.
type SessionMetrics struct {
	mu sync.Mutex

	startedAt time.Time

	cyclesRun    int
	cyclesFailed int
	cyclesEmpty  int

	commandsApplied  int
	commandsSkipped  int
	commandsDropped  int
	functionsCreated int

	inputTokens  int
	outputTokens int

	totalCycleTime time.Duration

	perAspect map[string]int
}

// Snapshot is a point-in-time copy of the session counters, free of the
// mutex so it can be passed and serialized by value.
type Snapshot struct {
	StartedAt time.Time `json:"started_at"`

	CyclesRun    int `json:"cycles_run"`
	CyclesFailed int `json:"cycles_failed"`
	CyclesEmpty  int `json:"cycles_empty"`

	CommandsApplied  int `json:"commands_applied"`
	CommandsSkipped  int `json:"commands_skipped"`
	CommandsDropped  int `json:"commands_dropped"`
	FunctionsCreated int `json:"functions_created"`

	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	TotalCycleTime time.Duration `json:"total_cycle_time_ms"`

	PerAspect map[string]int `json:"edits_per_aspect"`
}

// New starts tracking a session.
func New() *SessionMetrics {
	return &SessionMetrics{
		startedAt: time.Now(),
		perAspect: make(map[string]int),
	}
}

// RecordCycle records one completed generation cycle. commands counts the
// validated batch, dropped the candidates discarded during validation.
func (m *SessionMetrics) RecordCycle(aspect string, commands, dropped int, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cyclesRun++
	if commands == 0 {
		m.cyclesEmpty++
	}
	m.commandsDropped += dropped
	m.totalCycleTime += d
	m.perAspect[aspect]++
}

// RecordFailure records a cycle that aborted before yielding commands.
func (m *SessionMetrics) RecordFailure(aspect string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cyclesRun++
	m.cyclesFailed++
	m.perAspect[aspect]++
}

// RecordApply records the outcome of draining one command batch.
func (m *SessionMetrics) RecordApply(applied, skipped, discovered int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commandsApplied += applied
	m.commandsSkipped += skipped
	m.functionsCreated += discovered
}

// RecordTokens adds LLM token usage.
func (m *SessionMetrics) RecordTokens(input, output int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputTokens += input
	m.outputTokens += output
}

// Snapshot returns the current counters.
func (m *SessionMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := Snapshot{
		StartedAt:        m.startedAt,
		CyclesRun:        m.cyclesRun,
		CyclesFailed:     m.cyclesFailed,
		CyclesEmpty:      m.cyclesEmpty,
		CommandsApplied:  m.commandsApplied,
		CommandsSkipped:  m.commandsSkipped,
		CommandsDropped:  m.commandsDropped,
		FunctionsCreated: m.functionsCreated,
		InputTokens:      m.inputTokens,
		OutputTokens:     m.outputTokens,
		TotalCycleTime:   m.totalCycleTime,
		PerAspect:        make(map[string]int, len(m.perAspect)),
	}
	for k, v := range m.perAspect {
		out.PerAspect[k] = v
	}
	return out
}

// JSON returns the current counters as formatted JSON.
func (m *SessionMetrics) JSON() ([]byte, error) {
	snap := m.Snapshot()
	return json.MarshalIndent(&snap, "", "  ")
}

// PrintSummary writes a human-readable session summary.
func (m *SessionMetrics) PrintSummary(w io.Writer) {
	snap := m.Snapshot()
	fmt.Fprintf(w, "Session since %s\n", snap.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "  cycles:    %d run, %d failed, %d empty\n",
		snap.CyclesRun, snap.CyclesFailed, snap.CyclesEmpty)
	fmt.Fprintf(w, "  commands:  %d applied, %d skipped, %d dropped\n",
		snap.CommandsApplied, snap.CommandsSkipped, snap.CommandsDropped)
	fmt.Fprintf(w, "  functions: %d auto-created\n", snap.FunctionsCreated)
	fmt.Fprintf(w, "  tokens:    %d in, %d out\n", snap.InputTokens, snap.OutputTokens)
	if snap.CyclesRun > 0 {
		avg := snap.TotalCycleTime / time.Duration(snap.CyclesRun)
		fmt.Fprintf(w, "  avg cycle: %s\n", avg.Round(time.Millisecond))
	}
	for aspect, n := range snap.PerAspect {
		fmt.Fprintf(w, "  edits to %s: %d\n", aspect, n)
	}
}
