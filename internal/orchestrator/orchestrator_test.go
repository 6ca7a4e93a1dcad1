package orchestrator

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/enrich"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

const sampleCSV = `first_name,last_name,email,company,company_annual_revenue,industry
Ada,Lovelace,ada@analytical.io,Analytical Engines,"$2,500,000",Computing
Grace,Hopper,grace@flowmatic.dev,Flow-Matic,3M,Software
Linus,Torvalds,linus@kernel.org,Kernel Labs,800K,Open Source
Barbara,Liskov,barbara@abstraction.com,Abstraction Inc,1.5M,Software
Dennis,Ritchie,dennis@unixco.com,Unix Co,950K,Infrastructure
`

type recordingNotifier struct {
	completes []Notification
	failures  []string
}

func (n *recordingNotifier) NotifyComplete(_ context.Context, note Notification) error {
	n.completes = append(n.completes, note)
	return nil
}

func (n *recordingNotifier) NotifyFailed(_ context.Context, _, runID, errMessage string) error {
	n.failures = append(n.failures, runID+": "+errMessage)
	return nil
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "orchestrator_test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func sampleInput() CampaignInput {
	return CampaignInput{
		RunID:        "run-1",
		CampaignID:   "camp-1",
		UserID:       "user-1",
		CampaignName: "Q3 Outreach",
		Source:       model.LeadSourceCSV,
		Data:         []byte(sampleCSV),
		Config: model.PersonalizationConfig{
			ResearchPrompt:        "Research the company.",
			PersonalizationPrompt: "You write openers.",
			Task:                  "Book demos.",
			Guidelines:            "Be brief.",
			Example:               "Saw your Berlin launch.",
		},
	}
}

func newOrchestrator(st store.Store) *Orchestrator {
	return &Orchestrator{
		Store:        st,
		Researcher:   enrich.StubResearcher{},
		Personalizer: enrich.StubPersonalizer{},
		BatchSize:    10,
	}
}

func TestProcessCampaign_EndToEnd(t *testing.T) {
	st := newTestStore(t)
	o := newOrchestrator(st)
	notifier := &recordingNotifier{}
	o.Notifier = notifier

	input := sampleInput()
	input.NotifyOnComplete = true

	require.NoError(t, o.ProcessCampaign(context.Background(), input))

	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 5, run.LeadCount)
	assert.Equal(t, 5, run.ProcessedCount)
	assert.Equal(t, 5, run.SuccessCount)
	assert.Equal(t, 0, run.ErrorCount)

	campaign, err := st.GetCampaign(context.Background(), "camp-1")
	require.NoError(t, err)
	require.NotNil(t, campaign)
	assert.Equal(t, "Q3 Outreach", campaign.Name)
	assert.Equal(t, 5, campaign.CompletedCount)

	leads, err := st.GetLeads(context.Background(), "camp-1")
	require.NoError(t, err)
	require.Len(t, leads, 5)
	for _, lead := range leads {
		assert.Equal(t, model.EnrichmentEnriched, lead.Status)
		assert.NotEmpty(t, lead.PersonalizedMessage)
	}

	require.Len(t, notifier.completes, 1)
	assert.Equal(t, 5, notifier.completes[0].TotalLeads)
	assert.Equal(t, 5, notifier.completes[0].SuccessCount)
	assert.Empty(t, notifier.failures)
}

func TestProcessCampaign_RevenueFilter(t *testing.T) {
	st := newTestStore(t)
	o := newOrchestrator(st)

	input := sampleInput()
	min := 1_000_000.0
	input.RevenueMin = &min

	require.NoError(t, o.ProcessCampaign(context.Background(), input))

	// 800K and 950K are below the floor.
	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, run.LeadCount)
	assert.Equal(t, 3, run.SuccessCount)
}

func TestProcessCampaign_ValidationFailsBeforeStoreWrites(t *testing.T) {
	st := newTestStore(t)
	o := newOrchestrator(st)

	input := sampleInput()
	input.Config.Task = ""

	err := o.ProcessCampaign(context.Background(), input)
	require.Error(t, err)

	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "config.task", invalid.Field)

	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Nil(t, run)

	campaign, err := st.GetCampaign(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Nil(t, campaign)
}

func TestProcessCampaign_ExtractionFailureMarksRunFailed(t *testing.T) {
	st := newTestStore(t)
	o := newOrchestrator(st)
	notifier := &recordingNotifier{}
	o.Notifier = notifier

	input := sampleInput()
	input.Data = []byte("   ")
	input.NotifyOnComplete = true

	err := o.ProcessCampaign(context.Background(), input)
	require.Error(t, err)

	run, gerr := st.GetRun(context.Background(), "run-1")
	require.NoError(t, gerr)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.NotEmpty(t, run.ErrorMessage)

	require.Len(t, notifier.failures, 1)
	assert.Contains(t, notifier.failures[0], "run-1")
	assert.Empty(t, notifier.completes)
}

func TestProcessCampaign_ApolloRejectedAtExtraction(t *testing.T) {
	st := newTestStore(t)
	o := newOrchestrator(st)

	input := sampleInput()
	input.Source = model.LeadSourceApollo
	input.Data = nil

	err := o.ProcessCampaign(context.Background(), input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apollo")

	run, gerr := st.GetRun(context.Background(), "run-1")
	require.NoError(t, gerr)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusFailed, run.Status)
}

type yesResearcher struct {
	yesDomains map[string]bool
}

func (r yesResearcher) Research(_ context.Context, req enrich.ResearchRequest) (enrich.ResearchResult, error) {
	if r.yesDomains[req.Lead.EmailDomain()] {
		return enrich.ResearchResult{Research: "YES. Strong hiring signals."}, nil
	}
	return enrich.ResearchResult{Research: "NO. Nothing relevant found."}, nil
}

func TestProcessCampaign_IntentSignals(t *testing.T) {
	st := newTestStore(t)
	o := newOrchestrator(st)
	o.Researcher = yesResearcher{yesDomains: map[string]bool{
		"analytical.io": true,
		"kernel.org":    true,
	}}

	input := sampleInput()
	input.IntentSignals = "hiring for sales roles"

	require.NoError(t, o.ProcessCampaign(context.Background(), input))

	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.LeadCount)
	assert.Equal(t, 2, run.QualifiedCount)
	assert.Equal(t, 2, run.SuccessCount)

	// Qualification research carries into the stored leads.
	leads, err := st.GetLeads(context.Background(), "camp-1")
	require.NoError(t, err)
	require.Len(t, leads, 2)
	for _, lead := range leads {
		assert.Contains(t, lead.Research, "YES")
	}
}

func TestProcessCampaign_EmptyAfterFilters(t *testing.T) {
	st := newTestStore(t)
	o := newOrchestrator(st)

	input := sampleInput()
	min := 50_000_000.0
	input.RevenueMin = &min

	err := o.ProcessCampaign(context.Background(), input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "revenue")

	run, gerr := st.GetRun(context.Background(), "run-1")
	require.NoError(t, gerr)
	assert.Equal(t, model.RunStatusFailed, run.Status)
}

func TestResults_AndExportCSV(t *testing.T) {
	st := newTestStore(t)
	o := newOrchestrator(st)

	require.NoError(t, o.ProcessCampaign(context.Background(), sampleInput()))

	results, err := o.Results(context.Background(), "camp-1")
	require.NoError(t, err)
	require.NotNil(t, results)
	assert.Equal(t, 5, results.Total)
	assert.Equal(t, 5, results.Successful)
	assert.Equal(t, 0, results.Failed)

	csv, err := o.ExportCSV(context.Background(), "camp-1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "first_name,last_name,email"))
	assert.Contains(t, csv, `"ada@analytical.io"`)
	assert.Contains(t, lines[0], "personalized_message")
}

func TestResults_MissingCampaign(t *testing.T) {
	st := newTestStore(t)
	o := newOrchestrator(st)

	results, err := o.Results(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, results)

	_, err = o.ExportCSV(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no results to export")
}

func TestExportCSV_QuotesEmbeddedCharacters(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateCampaign(context.Background(), model.Campaign{
		ID: "camp-q", Name: "q", UserID: "u", Source: model.LeadSourceCSV,
	}))
	_, err := st.AppendLead(context.Background(), "camp-q", model.EnrichedLead{
		Lead: model.Lead{
			FirstName: "Jo",
			Email:     "jo@acme.io",
			Company:   `Acme "Rockets", Inc`,
		},
		PersonalizedMessage: "Loved the launch",
		Status:              model.EnrichmentEnriched,
	})
	require.NoError(t, err)

	o := newOrchestrator(st)
	csv, err := o.ExportCSV(context.Background(), "camp-q")
	require.NoError(t, err)
	assert.Contains(t, csv, `"Acme ""Rockets"", Inc"`)
}

type failingResearcher struct{}

func (failingResearcher) Research(context.Context, enrich.ResearchRequest) (enrich.ResearchResult, error) {
	return enrich.ResearchResult{}, eris.New("provider unreachable")
}

func TestProcessCampaign_AllProviderFailuresStillComplete(t *testing.T) {
	st := newTestStore(t)
	o := newOrchestrator(st)
	o.Researcher = failingResearcher{}

	require.NoError(t, o.ProcessCampaign(context.Background(), sampleInput()))

	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 5, run.ProcessedCount)
	assert.Equal(t, 0, run.SuccessCount)
	assert.Equal(t, 5, run.ErrorCount)
}
