package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

func TestCampaignInputValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*CampaignInput)
		wantField string
	}{
		{"valid", func(*CampaignInput) {}, ""},
		{"missing run id", func(in *CampaignInput) { in.RunID = "" }, "run_id"},
		{"missing campaign id", func(in *CampaignInput) { in.CampaignID = "" }, "campaign_id"},
		{"missing user id", func(in *CampaignInput) { in.UserID = " " }, "user_id"},
		{"missing source", func(in *CampaignInput) { in.Source = "" }, "lead_source"},
		{"unknown source", func(in *CampaignInput) { in.Source = "salesnav" }, "lead_source"},
		{"missing research prompt", func(in *CampaignInput) { in.Config.ResearchPrompt = "" }, "config.research_prompt"},
		{"missing personalization prompt", func(in *CampaignInput) { in.Config.PersonalizationPrompt = "" }, "config.personalization_prompt"},
		{"missing task", func(in *CampaignInput) { in.Config.Task = "" }, "config.task"},
		{"missing guidelines", func(in *CampaignInput) { in.Config.Guidelines = "" }, "config.guidelines"},
		{"missing example", func(in *CampaignInput) { in.Config.Example = "" }, "config.example"},
		{"csv without data", func(in *CampaignInput) { in.Data = nil }, "data"},
		{"xlsx without data", func(in *CampaignInput) {
			in.Source = model.LeadSourceXLSX
			in.Data = nil
		}, "data"},
		{"apollo without data is accepted", func(in *CampaignInput) {
			in.Source = model.LeadSourceApollo
			in.Data = nil
		}, ""},
		{"custom variable without prompt", func(in *CampaignInput) {
			in.Config.CustomVariables = []model.CustomVariable{{ID: "1", Name: "pain_point"}}
		}, "config.custom_variables"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sampleInput()
			tt.mutate(&in)

			err := in.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var invalid *InvalidInputError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.wantField, invalid.Field)
		})
	}
}
