package domain

import "time"

// RunStatus is the finite state of a sync run:
// Created → Running → {Completed | Partial | Failed}.
type RunStatus string

const (
	RunCreated   RunStatus = "created"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunPartial || s == RunFailed
}

// MaxFailureNotes bounds the per-run failure note list. Beyond it only the
// Failed counter grows, so a pathological run cannot balloon its audit record.
const MaxFailureNotes = 100

// FailureNote records one per-item failure with enough context for a
// targeted retry later: the candidate's external id or the cell it came
// from, plus the reason.
type FailureNote struct {
	ExternalID string `json:"external_id,omitempty"`
	Cell       string `json:"cell,omitempty"`
	Reason     string `json:"reason"`
}

// SyncRun is the audit record of one orchestrator execution against one
// region. It is mutated incrementally while the run progresses and finalized
// exactly once, including on abnormal termination.
type SyncRun struct {
	ID          string        `json:"id"`
	Region      string        `json:"region"`
	Category    Category      `json:"category,omitempty"`
	Requested   int           `json:"requested"` // candidates returned by nearby searches
	Created     int           `json:"created"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	Failures    []FailureNote `json:"failures,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Status      RunStatus     `json:"status"`
}

// NewSyncRun builds a run in the Created state.
func NewSyncRun(region string, category Category) *SyncRun {
	return &SyncRun{
		Region:    region,
		Category:  category,
		StartedAt: time.Now().UTC(),
		Status:    RunCreated,
	}
}

// Start moves the run to Running.
func (r *SyncRun) Start() {
	if r.Status == RunCreated {
		r.Status = RunRunning
	}
}

// RecordFailure increments the failure counter and appends a bounded note.
func (r *SyncRun) RecordFailure(note FailureNote) {
	r.Failed++
	if len(r.Failures) < MaxFailureNotes {
		r.Failures = append(r.Failures, note)
	}
}

// Finish finalizes the run with the given terminal status. It is a no-op if
// the run is already terminal, so the guaranteed-cleanup path and the normal
// path cannot double-finalize.
func (r *SyncRun) Finish(status RunStatus) {
	if r.Status.Terminal() {
		return
	}
	now := time.Now().UTC()
	r.CompletedAt = &now
	r.Status = status
}

// FinishFromCounters finalizes a normally completed run: Completed when no
// failures were recorded, Partial otherwise.
func (r *SyncRun) FinishFromCounters() {
	if r.Failed == 0 {
		r.Finish(RunCompleted)
	} else {
		r.Finish(RunPartial)
	}
}

// Terminal reports whether the run has been finalized.
func (r *SyncRun) Terminal() bool { return r.Status.Terminal() }

// BatchSummary aggregates the counters of several runs.
type BatchSummary struct {
	Regions     int `json:"regions"`
	Requested   int `json:"requested"`
	Created     int `json:"created"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
	RunsFailed  int `json:"runs_failed"`
	RunsPartial int `json:"runs_partial"`
}

// Summarize folds per-region runs into one aggregate.
func Summarize(runs []*SyncRun) BatchSummary {
	s := BatchSummary{Regions: len(runs)}
	for _, r := range runs {
		s.Requested += r.Requested
		s.Created += r.Created
		s.Skipped += r.Skipped
		s.Failed += r.Failed
		switch r.Status {
		case RunFailed:
			s.RunsFailed++
		case RunPartial:
			s.RunsPartial++
		}
	}
	return s
}
