package enrich

import (
	"context"
	"fmt"
)

// StubResearcher returns deterministic research text without calling any
// provider. Used when no API key is configured and in tests.
type StubResearcher struct{}

func (StubResearcher) Research(_ context.Context, req ResearchRequest) (ResearchResult, error) {
	industry := req.Lead.CompanyIndustry
	if industry == "" {
		industry = "their industry"
	}
	return ResearchResult{
		Research: fmt.Sprintf("%s operates in %s. No live research available in stub mode.",
			req.Lead.Company, industry),
	}, nil
}

// StubPersonalizer returns a deterministic opener without calling any
// provider. Used when no API key is configured and in tests.
type StubPersonalizer struct{}

func (StubPersonalizer) Personalize(_ context.Context, req PersonalizationRequest) (PersonalizationResult, error) {
	industry := req.Lead.CompanyIndustry
	if industry == "" {
		industry = "tech"
	}
	return PersonalizationResult{
		Message: fmt.Sprintf("Noticed %s is in %s - automation could save your team significant time on repetitive tasks.",
			req.Lead.Company, industry),
	}, nil
}
