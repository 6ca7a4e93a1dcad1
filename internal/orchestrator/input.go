package orchestrator

import (
	"fmt"
	"strings"

	"github.com/sells-group/outreach-cli/internal/model"
)

// CampaignInput is the full description of one campaign processing request.
type CampaignInput struct {
	RunID        string           `json:"run_id" yaml:"run_id"`
	CampaignID   string           `json:"campaign_id" yaml:"campaign_id"`
	UserID       string           `json:"user_id" yaml:"user_id"`
	CampaignName string           `json:"campaign_name" yaml:"campaign_name"`
	Source       model.LeadSource `json:"lead_source" yaml:"lead_source"`

	// Data is the raw lead file content for csv and xlsx sources.
	Data []byte `json:"-" yaml:"-"`

	Demo             bool `json:"demo" yaml:"demo"`
	NotifyOnComplete bool `json:"notify_on_complete" yaml:"notify_on_complete"`

	RevenueMin     *float64 `json:"revenue_min,omitempty" yaml:"revenue_min,omitempty"`
	RevenueMax     *float64 `json:"revenue_max,omitempty" yaml:"revenue_max,omitempty"`
	SkipDuplicates bool     `json:"skip_duplicates" yaml:"skip_duplicates"`
	IntentSignals  string   `json:"intent_signals" yaml:"intent_signals"`

	Config model.PersonalizationConfig `json:"config" yaml:"config"`
}

// InvalidInputError reports a request that fails validation before any
// processing starts.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("orchestrator: invalid input: %s: %s", e.Field, e.Reason)
}

// Validate checks all required fields. Nothing is written to the store before
// validation passes.
func (in *CampaignInput) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"run_id", in.RunID},
		{"campaign_id", in.CampaignID},
		{"user_id", in.UserID},
		{"lead_source", string(in.Source)},
		{"config.research_prompt", in.Config.ResearchPrompt},
		{"config.personalization_prompt", in.Config.PersonalizationPrompt},
		{"config.task", in.Config.Task},
		{"config.guidelines", in.Config.Guidelines},
		{"config.example", in.Config.Example},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &InvalidInputError{Field: r.field, Reason: "required"}
		}
	}

	switch in.Source {
	case model.LeadSourceCSV, model.LeadSourceXLSX:
		if len(in.Data) == 0 {
			return &InvalidInputError{Field: "data", Reason: fmt.Sprintf("%s source requires a lead file", in.Source)}
		}
	case model.LeadSourceApollo:
		// Accepted here, rejected at extraction.
	default:
		return &InvalidInputError{Field: "lead_source", Reason: fmt.Sprintf("unknown source %q", in.Source)}
	}

	for _, cv := range in.Config.CustomVariables {
		if strings.TrimSpace(cv.Name) == "" || strings.TrimSpace(cv.Prompt) == "" {
			return &InvalidInputError{Field: "config.custom_variables", Reason: "name and prompt are required"}
		}
	}

	return nil
}
