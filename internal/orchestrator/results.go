package orchestrator

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Results summarizes the enriched collection of a campaign.
type Results struct {
	Total      int                  `json:"total"`
	Successful int                  `json:"successful"`
	Failed     int                  `json:"failed"`
	Leads      []model.EnrichedLead `json:"leads"`
}

// Results reads the enriched leads for a campaign. Returns (nil, nil) when
// the campaign has no collection yet.
func (o *Orchestrator) Results(ctx context.Context, campaignID string) (*Results, error) {
	leads, err := o.Store.GetLeads(ctx, campaignID)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: read campaign leads")
	}
	if leads == nil {
		return nil, nil
	}

	successful := 0
	for _, lead := range leads {
		if lead.Status == model.EnrichmentEnriched && lead.PersonalizedMessage != "" {
			successful++
		}
	}

	return &Results{
		Total:      len(leads),
		Successful: successful,
		Failed:     len(leads) - successful,
		Leads:      leads,
	}, nil
}

// Status reads the current run record. Returns (nil, nil) when the run does
// not exist.
func (o *Orchestrator) Status(ctx context.Context, runID string) (*model.Run, error) {
	return o.Store.GetRun(ctx, runID)
}

// exportColumns is the fixed CSV layout for exported results.
var exportColumns = []struct {
	header string
	value  func(l model.EnrichedLead) string
}{
	{"first_name", func(l model.EnrichedLead) string { return l.FirstName }},
	{"last_name", func(l model.EnrichedLead) string { return l.LastName }},
	{"email", func(l model.EnrichedLead) string { return l.Email }},
	{"company", func(l model.EnrichedLead) string { return l.Company }},
	{"company_url", func(l model.EnrichedLead) string { return l.CompanyURL }},
	{"company_industry", func(l model.EnrichedLead) string { return l.CompanyIndustry }},
	{"company_headcount", func(l model.EnrichedLead) string { return l.CompanyHeadcount }},
	{"company_annual_revenue", func(l model.EnrichedLead) string { return l.CompanyRevenue }},
	{"job_title", func(l model.EnrichedLead) string { return l.JobTitle }},
	{"location", func(l model.EnrichedLead) string { return l.Location }},
	{"phone_number", func(l model.EnrichedLead) string { return l.PhoneNumber }},
	{"linkedin_url", func(l model.EnrichedLead) string { return l.LinkedInURL }},
	{"personalized_message", func(l model.EnrichedLead) string { return l.PersonalizedMessage }},
	{"enrichment_status", func(l model.EnrichedLead) string { return string(l.Status) }},
	{"custom_variables", func(l model.EnrichedLead) string {
		if len(l.CustomVariables) == 0 {
			return ""
		}
		data, err := json.Marshal(l.CustomVariables)
		if err != nil {
			return ""
		}
		return string(data)
	}},
}

// ExportCSV renders the campaign's enriched leads as a flat CSV with every
// field quoted.
func (o *Orchestrator) ExportCSV(ctx context.Context, campaignID string) (string, error) {
	results, err := o.Results(ctx, campaignID)
	if err != nil {
		return "", err
	}
	if results == nil || len(results.Leads) == 0 {
		return "", eris.New("orchestrator: no results to export")
	}

	var b strings.Builder
	for i, col := range exportColumns {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(col.header)
	}
	b.WriteByte('\n')

	for _, lead := range results.Leads {
		for i, col := range exportColumns {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(col.value(lead), `"`, `""`))
			b.WriteByte('"')
		}
		b.WriteByte('\n')
	}

	return b.String(), nil
}
