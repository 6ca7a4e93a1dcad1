package model

import "strings"

// EnrichmentStatus tracks where a lead is in the personalization lifecycle.
type EnrichmentStatus string

const (
	EnrichmentPending  EnrichmentStatus = "pending"
	EnrichmentEnriched EnrichmentStatus = "enriched"
	EnrichmentFailed   EnrichmentStatus = "failed"
)

// Lead is one prospect extracted from an upload. Email is the unique key
// within a campaign. Immutable after extraction except for AttachedResearch,
// which the intent filter sets so the engine can skip a second research call.
type Lead struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`

	Company          string `json:"company"`
	CompanyURL       string `json:"company_url,omitempty"`
	CompanyIndustry  string `json:"company_industry,omitempty"`
	CompanyHeadcount string `json:"company_headcount,omitempty"`
	CompanyRevenue   string `json:"company_annual_revenue,omitempty"`
	CompanyLinkedIn  string `json:"company_linkedin_url,omitempty"`
	CompanyFunding   string `json:"company_total_funding,omitempty"`
	CompanyTech      string `json:"company_technologies,omitempty"`
	CompanyFounded   string `json:"company_founded_year,omitempty"`
	CompanyPhone     string `json:"company_phone_number,omitempty"`

	JobTitle    string `json:"job_title,omitempty"`
	Headline    string `json:"headline,omitempty"`
	Keywords    string `json:"keywords,omitempty"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
	TwitterURL  string `json:"twitter_url,omitempty"`
	Location    string `json:"location,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`

	SEODescription   string `json:"company_seo_description,omitempty"`
	ShortDescription string `json:"company_short_description,omitempty"`

	// AttachedResearch carries research produced during intent qualification
	// so personalization can reuse it instead of paying for a second call.
	AttachedResearch string `json:"attached_research,omitempty"`
}

// NormalizedEmail returns the lead's email lowercased and trimmed, the form
// used for all dedup comparisons.
func (l Lead) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(l.Email))
}

// EmailDomain returns the part after '@', or "" when the email is malformed.
func (l Lead) EmailDomain() string {
	_, domain, ok := strings.Cut(l.Email, "@")
	if !ok || domain == "" {
		return ""
	}
	return domain
}

// EnrichedLead is a Lead plus the personalization outcome. Status enriched
// implies a non-empty PersonalizedMessage.
type EnrichedLead struct {
	Lead

	PersonalizedMessage string            `json:"personalized_message"`
	Status              EnrichmentStatus  `json:"enrichment_status"`
	Research            string            `json:"research,omitempty"`
	CustomVariables     map[string]string `json:"custom_variables,omitempty"`
}

// CustomVariable is a user-defined named field populated per lead by the
// personalization provider.
type CustomVariable struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Prompt string `json:"prompt" yaml:"prompt"`
}

// PersonalizationConfig is the per-run prompt bundle. Immutable for the life
// of a run.
type PersonalizationConfig struct {
	ResearchPrompt        string           `json:"research_prompt" yaml:"research_prompt"`
	PersonalizationPrompt string           `json:"personalization_prompt" yaml:"personalization_prompt"`
	Task                  string           `json:"task" yaml:"task"`
	Guidelines            string           `json:"guidelines" yaml:"guidelines"`
	Example               string           `json:"example" yaml:"example"`
	CustomVariables       []CustomVariable `json:"custom_variables,omitempty" yaml:"custom_variables,omitempty"`
}
