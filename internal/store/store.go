// Package store persists campaigns, their enriched lead collections, and run
// progress. Two implementations exist: SQLite (default, single binary) and
// Postgres (shared deployments).
package store

import (
	"context"

	"github.com/sells-group/outreach-cli/internal/model"
)

// RunUpdate is a partial run mutation. Status transitions are validated
// against the run's current status; a regressive status is ignored while the
// counts still merge. Nil count fields are left untouched.
type RunUpdate struct {
	Status       model.RunStatus
	ErrorMessage string
	Counts       model.RunCounts
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status     model.RunStatus
	UserID     string
	CampaignID string
	Limit      int
	Offset     int
}

// Store is the persistence interface for the campaign pipeline.
type Store interface {
	// Campaigns
	CreateCampaign(ctx context.Context, c model.Campaign) error
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	UpdateCampaignCompletedCount(ctx context.Context, id string, count int) error

	// Lead collections. AppendLead adds one enriched lead to the campaign's
	// collection, replacing any existing entry with the same normalized
	// email, and returns the collection size afterwards.
	AppendLead(ctx context.Context, campaignID string, lead model.EnrichedLead) (int, error)
	GetLeads(ctx context.Context, campaignID string) ([]model.EnrichedLead, error)

	// Runs. GetRun returns (nil, nil) when the run does not exist.
	CreateRun(ctx context.Context, run model.Run) error
	UpdateRun(ctx context.Context, runID string, upd RunUpdate) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// ExistingEmails returns the normalized emails present in the user's
	// other campaigns, for duplicate filtering.
	ExistingEmails(ctx context.Context, userID, excludeCampaignID string) (map[string]struct{}, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
