package model

import "time"

// RunStatus is the state machine over a campaign run.
type RunStatus string

const (
	RunStatusPending       RunStatus = "pending"
	RunStatusExtracting    RunStatus = "extracting"
	RunStatusQualifying    RunStatus = "qualifying"
	RunStatusPersonalizing RunStatus = "personalizing"
	RunStatusCompleted     RunStatus = "completed"
	RunStatusFailed        RunStatus = "failed"
	RunStatusCancelled     RunStatus = "cancelled"
)

// statusRank orders the forward progression. Terminal states sort last.
var statusRank = map[RunStatus]int{
	RunStatusPending:       0,
	RunStatusExtracting:    1,
	RunStatusQualifying:    2,
	RunStatusPersonalizing: 3,
	RunStatusCompleted:     4,
	RunStatusFailed:        5,
	RunStatusCancelled:     5,
}

// Terminal reports whether no further transition is allowed from s.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// CanTransition reports whether moving from s to next is a legal, monotonic
// transition. Failed and cancelled are reachable from any non-terminal state;
// everything else must move forward.
func (s RunStatus) CanTransition(next RunStatus) bool {
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	if next == RunStatusFailed || next == RunStatusCancelled {
		return true
	}
	nr, ok := statusRank[next]
	if !ok {
		return false
	}
	return nr > statusRank[s]
}

// LeadSource identifies where a campaign's leads come from.
type LeadSource string

const (
	LeadSourceCSV    LeadSource = "csv"
	LeadSourceXLSX   LeadSource = "xlsx"
	LeadSourceApollo LeadSource = "apollo"
)

// Campaign is a named, user-owned unit of work. It owns one lead collection
// and zero or more runs.
type Campaign struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	UserID         string     `json:"user_id"`
	Source         LeadSource `json:"source"`
	LeadCount      int        `json:"lead_count"`
	CompletedCount int        `json:"completed_count"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Run is one execution of a campaign's pipeline.
type Run struct {
	ID             string    `json:"id"`
	CampaignID     string    `json:"campaign_id"`
	UserID         string    `json:"user_id"`
	Status         RunStatus `json:"status"`
	LeadCount      int       `json:"lead_count"`
	ProcessedCount int       `json:"processed_count"`
	SuccessCount   int       `json:"success_count"`
	ErrorCount     int       `json:"error_count"`
	QualifiedCount int       `json:"qualified_count"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RunCounts is a partial count update merged into an existing run record.
// Nil fields are left untouched.
type RunCounts struct {
	LeadCount      *int
	ProcessedCount *int
	SuccessCount   *int
	ErrorCount     *int
	QualifiedCount *int
}

// Int is a convenience for building RunCounts literals.
func Int(v int) *int { return &v }
