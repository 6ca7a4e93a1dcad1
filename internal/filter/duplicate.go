package filter

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

// EmailLookup answers which normalized emails already exist in the user's
// previous campaigns.
type EmailLookup interface {
	ExistingEmails(ctx context.Context, userID, excludeCampaignID string) (map[string]struct{}, error)
}

// Duplicates removes leads whose emails appeared in the user's earlier
// campaigns. A lookup failure keeps all leads rather than blocking the run.
// Returns EmptyResultError when every lead is removed.
func Duplicates(ctx context.Context, lookup EmailLookup, userID, campaignID string, leads []model.Lead) ([]model.Lead, error) {
	existing, err := lookup.ExistingEmails(ctx, userID, campaignID)
	if err != nil {
		zap.L().Warn("duplicate lookup failed, keeping all leads", zap.Error(err))
		return leads, nil
	}
	if len(existing) == 0 {
		return leads, nil
	}

	kept := make([]model.Lead, 0, len(leads))
	for _, lead := range leads {
		email := lead.NormalizedEmail()
		if email == "" {
			continue
		}
		if _, dup := existing[email]; dup {
			continue
		}
		kept = append(kept, lead)
	}

	zap.L().Info("duplicate filter applied",
		zap.Int("before", len(leads)), zap.Int("after", len(kept)),
		zap.Int("known_emails", len(existing)))

	if len(kept) == 0 && len(leads) > 0 {
		return nil, &EmptyResultError{Filter: "duplicate"}
	}
	return kept, nil
}
