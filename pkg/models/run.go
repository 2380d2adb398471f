package models

import "time"

// SuiteRun is one archived execution of a suite: the summary kept after
// every scenario's live state has been discarded.
type SuiteRun struct {
	ID         string            `json:"id"`
	Suite      string            `json:"suite"`
	TargetURL  string            `json:"target_url"`
	StartedAt  time.Time         `json:"started_at"`
	Duration   time.Duration     `json:"duration"`
	Passed     int               `json:"passed"`
	Failed     int               `json:"failed"`
	Skipped    int               `json:"skipped"`
	Scenarios  []ScenarioOutcome `json:"scenarios"`
	ReportPath string            `json:"report_path,omitempty"`
}

// Succeeded reports whether no scenario failed.
func (r *SuiteRun) Succeeded() bool {
	return r.Failed == 0
}

// ScenarioOutcome is the archived summary of one scenario execution.
type ScenarioOutcome struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Status     string        `json:"status"` // passed, failed, skipped
	Error      string        `json:"error,omitempty"`
	Transcript []string      `json:"transcript,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// ProgressEvent is one live update broadcast while a run executes.
type ProgressEvent struct {
	Type     string    `json:"type"` // scenario_phase, run_started, run_finished
	RunID    string    `json:"run_id"`
	Suite    string    `json:"suite"`
	Scenario string    `json:"scenario,omitempty"`
	Phase    string    `json:"phase,omitempty"`
	Status   string    `json:"status,omitempty"`
	At       time.Time `json:"at"`
}
