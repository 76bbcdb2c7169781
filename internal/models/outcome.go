package models

import "time"

// OutcomeStatus is the per-record result classification.
type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "success"
	StatusFailed  OutcomeStatus = "failed"
	StatusSkipped OutcomeStatus = "skipped"
)

// FailureKind classifies why a record failed.
type FailureKind string

const (
	KindElementNotFound   FailureKind = "element_not_found"
	KindUnexpectedContent FailureKind = "unexpected_content"
	KindTimeout           FailureKind = "timeout"
	KindRemoteError       FailureKind = "remote_error"
	KindSessionLost       FailureKind = "session_lost"
	KindMalformedInput    FailureKind = "malformed_input"
)

// Outcome records the result of driving one InputRecord through a workflow.
// Never mutated after creation.
type Outcome struct {
	RecordID string
	Row      int // source spreadsheet row
	Status   OutcomeStatus
	Kind     FailureKind // empty on success
	Reason   string      // free text, remote messages recorded verbatim
	Attempts int         // record-level attempts consumed
	At       time.Time
}

// RunSummary aggregates the outcomes of one batch run in input order.
type RunSummary struct {
	RunID      string
	Workflow   string
	StartedAt  time.Time
	FinishedAt time.Time
	Aborted    bool   // true when the run ended on a session-fatal error
	AbortCause string // empty unless Aborted
	Outcomes   []Outcome
}

// Append adds one outcome, preserving input order.
func (s *RunSummary) Append(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
}

// Total returns the number of recorded outcomes.
func (s *RunSummary) Total() int { return len(s.Outcomes) }

// Count returns how many outcomes carry the given status.
func (s *RunSummary) Count(status OutcomeStatus) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

func (s *RunSummary) Succeeded() int { return s.Count(StatusSuccess) }
func (s *RunSummary) Failed() int    { return s.Count(StatusFailed) }
func (s *RunSummary) Skipped() int   { return s.Count(StatusSkipped) }
