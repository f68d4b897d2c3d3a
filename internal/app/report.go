package app

import (
	"fmt"
	"sync"
	"time"
)

// StageCounts records how many recipients each selection stage eliminated.
// Exposing the per-stage numbers is part of the dispatch contract: operators
// need to see where a population was filtered out.
type StageCounts struct {
	Checked           int
	RemindersDisabled int
	NotAtReminderTime int
	NothingDue        int
	Due               int
}

// RecipientError records one recipient's failure without aborting the batch.
type RecipientError struct {
	RecipientID int64
	Message     string
}

// DispatchReport aggregates one run's outcome. Updates are serialized through
// its methods, so worker goroutines can share one report.
type DispatchReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool

	mu     sync.Mutex
	Stages StageCounts
	Sent   int
	Errors []RecipientError
}

func newDispatchReport(runID string, startedAt time.Time, dryRun bool) *DispatchReport {
	return &DispatchReport{
		RunID:     runID,
		StartedAt: startedAt,
		DryRun:    dryRun,
	}
}

func (r *DispatchReport) noteChecked() {
	r.mu.Lock()
	r.Stages.Checked++
	r.mu.Unlock()
}

func (r *DispatchReport) noteRemindersDisabled() {
	r.mu.Lock()
	r.Stages.RemindersDisabled++
	r.mu.Unlock()
}

func (r *DispatchReport) noteNotAtReminderTime() {
	r.mu.Lock()
	r.Stages.NotAtReminderTime++
	r.mu.Unlock()
}

func (r *DispatchReport) noteNothingDue() {
	r.mu.Lock()
	r.Stages.NothingDue++
	r.mu.Unlock()
}

func (r *DispatchReport) noteDue() {
	r.mu.Lock()
	r.Stages.Due++
	r.mu.Unlock()
}

func (r *DispatchReport) noteSent() {
	r.mu.Lock()
	r.Sent++
	r.mu.Unlock()
}

func (r *DispatchReport) addError(recipientID int64, message string) {
	r.mu.Lock()
	r.Errors = append(r.Errors, RecipientError{RecipientID: recipientID, Message: message})
	r.mu.Unlock()
}

func (r *DispatchReport) finish(at time.Time) {
	r.mu.Lock()
	r.FinishedAt = at
	r.mu.Unlock()
}

// Summary renders the staged-filter counts in one operator-readable line.
func (r *DispatchReport) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := r.Stages.Checked - r.Stages.RemindersDisabled
	atTime := matched - r.Stages.NotAtReminderTime
	return fmt.Sprintf(
		"checked=%d matched_preferences=%d at_reminder_time=%d had_due_work=%d sent=%d errors=%d dry_run=%t",
		r.Stages.Checked, matched, atTime, r.Stages.Due, r.Sent, len(r.Errors), r.DryRun,
	)
}
