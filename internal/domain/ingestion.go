package domain

import "time"

// Outcome tags the result of one conversion step.
type Outcome string

// Conversion outcomes.
const (
	OutcomeSkipped   Outcome = "SKIPPED"
	OutcomeConverted Outcome = "CONVERTED"
	OutcomeFailed    Outcome = "FAILED"
)

// Step names the pipeline stage a result belongs to.
type Step string

// Pipeline steps.
const (
	StepSync    Step = "SYNC"
	StepExtract Step = "EXTRACT"
	StepConvert Step = "CONVERT"
	StepUnify   Step = "UNIFY"
)

// FileResult is the tagged per-file outcome: Skipped, Converted(rows) or Failed(reason).
type FileResult struct {
	Step    Step
	Input   string
	Output  string
	Outcome Outcome
	Rows    int64
	Reason  string
}

// Skipped builds a result for a step whose output already exists.
func Skipped(step Step, input, output, reason string) FileResult {
	return FileResult{Step: step, Input: input, Output: output, Outcome: OutcomeSkipped, Reason: reason}
}

// Converted builds a result for a step that produced its output.
func Converted(step Step, input, output string, rows int64) FileResult {
	return FileResult{Step: step, Input: input, Output: output, Outcome: OutcomeConverted, Rows: rows}
}

// Failed builds a result for a step that broke.
func Failed(step Step, input, output string, err error) FileResult {
	return FileResult{Step: step, Input: input, Output: output, Outcome: OutcomeFailed, Reason: err.Error()}
}

// Report summarizes one pipeline run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []FileResult
}

// Count returns how many results carry the given outcome.
func (r *Report) Count(o Outcome) int {
	n := 0
	for i := range r.Results {
		if r.Results[i].Outcome == o {
			n++
		}
	}
	return n
}

// Failures returns the failed results.
func (r *Report) Failures() []FileResult {
	var out []FileResult
	for i := range r.Results {
		if r.Results[i].Outcome == OutcomeFailed {
			out = append(out, r.Results[i])
		}
	}
	return out
}

// RunStatus is the lifecycle state of a recorded ingestion run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusPartial   RunStatus = "PARTIAL"
	RunStatusFailed    RunStatus = "FAILED"
)

// IngestionRun is one recorded pipeline run from the ledger.
type IngestionRun struct {
	ID         string
	Trigger    string
	Status     RunStatus
	Converted  int
	Skipped    int
	Failed     int
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// StatusFor derives the final run status from a report and the run error.
func StatusFor(r *Report, runErr error) RunStatus {
	switch {
	case runErr != nil:
		return RunStatusFailed
	case r != nil && r.Count(OutcomeFailed) > 0:
		return RunStatusPartial
	default:
		return RunStatusSucceeded
	}
}
