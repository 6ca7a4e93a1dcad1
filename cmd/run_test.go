package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

const campaignYAML = `campaign_id: camp-7
campaign_name: Fintech Founders
user_id: user-3
lead_source: csv
lead_file: leads.csv
notify_on_complete: true
revenue_min: 1000000
skip_duplicates: true
intent_signals: hiring for automation roles
config:
  research_prompt: Research {{company}} recent news
  personalization_prompt: Write an opener
  task: Write one opening sentence
  guidelines: Be specific and concise
  example: Saw your Series A announcement.
  custom_variables:
    - id: cv-1
      name: pain_point
      prompt: Their biggest operational pain point
`

func writeCampaignFiles(t *testing.T, yamlText, csvText string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "campaign.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlText), 0o644))
	if csvText != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "leads.csv"), []byte(csvText), 0o644))
	}
	return path
}

func TestLoadCampaignFile(t *testing.T) {
	path := writeCampaignFiles(t, campaignYAML, serveTestCSV)

	input, err := loadCampaignFile(path)
	require.NoError(t, err)

	assert.Equal(t, "camp-7", input.CampaignID)
	assert.Equal(t, "Fintech Founders", input.CampaignName)
	assert.Equal(t, "user-3", input.UserID)
	assert.Equal(t, model.LeadSourceCSV, input.Source)
	assert.True(t, input.NotifyOnComplete)
	assert.True(t, input.SkipDuplicates)
	require.NotNil(t, input.RevenueMin)
	assert.InDelta(t, 1_000_000, *input.RevenueMin, 0.01)
	assert.Nil(t, input.RevenueMax)
	assert.Equal(t, "hiring for automation roles", input.IntentSignals)

	assert.Equal(t, serveTestCSV, string(input.Data))

	require.Len(t, input.Config.CustomVariables, 1)
	assert.Equal(t, "pain_point", input.Config.CustomVariables[0].Name)

	// Run id is generated when absent.
	assert.NotEmpty(t, input.RunID)
	require.NoError(t, input.Validate())
}

func TestLoadCampaignFile_KeepsExplicitRunID(t *testing.T) {
	path := writeCampaignFiles(t, "run_id: run-42\n"+campaignYAML, serveTestCSV)

	input, err := loadCampaignFile(path)
	require.NoError(t, err)
	assert.Equal(t, "run-42", input.RunID)
}

func TestLoadCampaignFile_MissingLeadFile(t *testing.T) {
	path := writeCampaignFiles(t, campaignYAML, "")

	_, err := loadCampaignFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read lead file")
}

func TestLoadCampaignFile_BadYAML(t *testing.T) {
	path := writeCampaignFiles(t, "config: [not: a: map", "")

	_, err := loadCampaignFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse campaign file")
}

func TestLoadCampaignFile_Missing(t *testing.T) {
	_, err := loadCampaignFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read campaign file")
}
