package pipeline

import "time"

// Stage describes a per-module pipeline phase.
type Stage string

const (
	// StageLoad reads and parses the input.
	StageLoad Stage = "load"
	// StagePasses runs the configured passes.
	StagePasses Stage = "passes"
	// StageWrite writes the transformed module.
	StageWrite Stage = "write"
	// StageReport writes the merged selection report.
	StageReport Stage = "report"
	// StageFinished marks a module that went through every stage.
	StageFinished Stage = "finished"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the task is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the task is currently working.
	StatusWorking Status = "working"
	// StatusDone indicates the task is done.
	StatusDone Status = "done"
	// StatusError indicates the task encountered an error.
	StatusError Status = "error"
)

// Event reports progress for a file (or for the overall pipeline when File is empty).
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
	// Detail is a short note such as the number of selected targets.
	Detail string
	// Targets is the number of selected instructions, set on StageFinished.
	Targets int
}

// ProgressSink consumes progress events. Workers call OnEvent
// concurrently.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings holds stage durations.
type Timings struct {
	stages map[Stage]time.Duration
}

func (t *Timings) ensure() {
	if t.stages == nil {
		t.stages = make(map[Stage]time.Duration)
	}
}

// Set stores a duration for the given stage.
func (t *Timings) Set(stage Stage, dur time.Duration) {
	if t == nil {
		return
	}
	t.ensure()
	t.stages[stage] = dur
}

// Add merges other into t, summing shared stages.
func (t *Timings) Add(other Timings) {
	if t == nil || other.stages == nil {
		return
	}
	t.ensure()
	for stage, dur := range other.stages {
		t.stages[stage] += dur
	}
}

// Has reports whether a duration for stage is recorded.
func (t Timings) Has(stage Stage) bool {
	if t.stages == nil {
		return false
	}
	_, ok := t.stages[stage]
	return ok
}

// Duration returns the recorded duration for stage.
func (t Timings) Duration(stage Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	return t.stages[stage]
}

// Sum returns the sum of durations across the provided stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	if t.stages == nil {
		return 0
	}
	var total time.Duration
	for _, stage := range stages {
		total += t.stages[stage]
	}
	return total
}
