// Package extract parses lead uploads (CSV, XLSX) into validated, deduplicated
// model.Lead slices.
package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/outreach-cli/internal/model"
)

// Format identifies the lead upload format.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatXLSX   Format = "xlsx"
	FormatApollo Format = "apollo"
)

// DefaultDemoLimit caps demo runs to a small sample.
const DefaultDemoLimit = 20

// Options configures extraction.
type Options struct {
	Format    Format
	Demo      bool
	DemoLimit int // default DefaultDemoLimit
}

// ParseError reports input that could not be tokenized at all. Individual bad
// rows are tolerated and do not produce a ParseError.
type ParseError struct {
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("extract: parse %s input: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Leads parses the upload into leads: tokenize, map columns, dedup by
// normalized email (first occurrence wins), validate, backfill company fields
// from the email domain, apply the demo cap.
func Leads(r io.Reader, opts Options) ([]model.Lead, error) {
	var (
		header []string
		rows   [][]string
		err    error
	)

	switch opts.Format {
	case FormatCSV:
		header, rows, err = readCSV(r)
	case FormatXLSX:
		header, rows, err = readXLSX(r)
	case FormatApollo:
		return nil, eris.New("extract: apollo source is not supported yet")
	default:
		return nil, eris.Errorf("extract: unknown format %q", opts.Format)
	}
	if err != nil {
		return nil, &ParseError{Format: opts.Format, Err: err}
	}
	if len(header) == 0 {
		return nil, &ParseError{Format: opts.Format, Err: eris.New("missing header row")}
	}

	leads := make([]model.Lead, 0, len(rows))
	for _, row := range rows {
		leads = append(leads, leadFromRow(header, row))
	}
	zap.L().Info("parsed lead rows", zap.Int("rows", len(leads)), zap.String("format", string(opts.Format)))

	leads = dedupByEmail(leads)
	leads = validateAndBackfill(leads)

	limit := opts.DemoLimit
	if limit <= 0 {
		limit = DefaultDemoLimit
	}
	if opts.Demo && len(leads) > limit {
		zap.L().Info("demo mode: capping leads", zap.Int("limit", limit), zap.Int("total", len(leads)))
		leads = leads[:limit]
	}

	return leads, nil
}

// columnSynonyms maps each Lead field to the upload column names that can
// carry it, in priority order. Lookups are case-insensitive.
var columnSynonyms = map[string][]string{
	"first_name":                {"first name", "first_name", "firstname", "fname"},
	"last_name":                 {"last name", "last_name", "lastname", "lname"},
	"email":                     {"email", "personal_emails", "work_email"},
	"company":                   {"company name", "company", "organization"},
	"company_url":               {"company website", "company_url", "website"},
	"linkedin_url":              {"linkedin", "linkedin_url", "linkedin url"},
	"job_title":                 {"title", "job_title", "job title", "position"},
	"company_industry":          {"industry", "company_industry"},
	"headline":                  {"headline"},
	"company_headcount":         {"employees count", "employee count", "company_headcount"},
	"keywords":                  {"keywords"},
	"company_annual_revenue":    {"company annual revenue clean", "company_annual_revenue", "company annual revenue"},
	"company_seo_description":   {"company seo description", "company_seo_description"},
	"company_short_description": {"company short description", "company_short_description"},
	"company_linkedin_url":      {"company linkedin", "company_linkedin_url"},
	"company_total_funding":     {"company total funding clean", "company_total_funding"},
	"company_technologies":      {"company technologies", "company_technologies"},
	"twitter_url":               {"twitter url", "twitter_url"},
	"company_phone_number":      {"company phone number", "company_phone_number"},
	"company_founded_year":      {"company founded year", "company_founded_year"},
	"location":                  {"location"},
	"phone_number":              {"phone number", "phone_number"},
}

func leadFromRow(header, row []string) model.Lead {
	values := make(map[string]string, len(header))
	for i, col := range header {
		if i >= len(row) {
			break
		}
		key := strings.ToLower(strings.TrimSpace(col))
		if key == "" {
			continue
		}
		if v := strings.TrimSpace(row[i]); v != "" {
			if _, exists := values[key]; !exists {
				values[key] = v
			}
		}
	}

	field := func(name string) string {
		for _, syn := range columnSynonyms[name] {
			if v, ok := values[syn]; ok {
				return v
			}
		}
		return ""
	}

	return model.Lead{
		FirstName:        field("first_name"),
		LastName:         field("last_name"),
		Email:            field("email"),
		Company:          field("company"),
		CompanyURL:       field("company_url"),
		CompanyIndustry:  field("company_industry"),
		CompanyHeadcount: field("company_headcount"),
		CompanyRevenue:   field("company_annual_revenue"),
		CompanyLinkedIn:  field("company_linkedin_url"),
		CompanyFunding:   field("company_total_funding"),
		CompanyTech:      field("company_technologies"),
		CompanyFounded:   field("company_founded_year"),
		CompanyPhone:     field("company_phone_number"),
		JobTitle:         field("job_title"),
		Headline:         field("headline"),
		Keywords:         field("keywords"),
		LinkedInURL:      field("linkedin_url"),
		TwitterURL:       field("twitter_url"),
		Location:         field("location"),
		PhoneNumber:      field("phone_number"),
		SEODescription:   field("company_seo_description"),
		ShortDescription: field("company_short_description"),
	}
}

func dedupByEmail(leads []model.Lead) []model.Lead {
	seen := make(map[string]struct{}, len(leads))
	unique := leads[:0]

	for _, lead := range leads {
		email := lead.NormalizedEmail()
		if email == "" {
			// Validation drops these with a reason.
			unique = append(unique, lead)
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		unique = append(unique, lead)
	}

	if dropped := len(leads) - len(unique); dropped > 0 {
		zap.L().Info("removed duplicate leads", zap.Int("dropped", dropped))
	}
	return unique
}

var titleCaser = cases.Title(language.English)

func validateAndBackfill(leads []model.Lead) []model.Lead {
	valid := leads[:0]

	for _, lead := range leads {
		if !strings.Contains(lead.Email, "@") {
			zap.L().Warn("dropping lead without usable email",
				zap.String("first_name", lead.FirstName),
				zap.String("last_name", lead.LastName))
			continue
		}

		if lead.Company == "" {
			domain := lead.EmailDomain()
			if domain == "" {
				zap.L().Warn("dropping lead without company or email domain", zap.String("email", lead.Email))
				continue
			}
			name, _, _ := strings.Cut(domain, ".")
			lead.Company = titleCaser.String(name)
			if lead.CompanyURL == "" {
				lead.CompanyURL = "https://" + domain
			}
		}

		valid = append(valid, lead)
	}

	return valid
}
