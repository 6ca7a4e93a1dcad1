// Package enrich runs leads through research and personalization providers
// in bounded batches with incremental persistence.
package enrich

import (
	"context"

	"github.com/sells-group/outreach-cli/internal/model"
)

// ResearchRequest asks a research provider for company intelligence on one
// lead.
type ResearchRequest struct {
	SystemPrompt string
	UserPrompt   string
	Lead         model.Lead
}

// ResearchResult is free-text research, optionally with source citations.
type ResearchResult struct {
	Research  string
	Citations []string
}

// Researcher produces company research for a single lead. Implementations
// own their retry and timeout behavior; an error means the call is spent.
type Researcher interface {
	Research(ctx context.Context, req ResearchRequest) (ResearchResult, error)
}

// PersonalizationRequest asks a personalization provider for an outreach
// message grounded on prior research.
type PersonalizationRequest struct {
	Lead     model.Lead
	Research string
	Config   model.PersonalizationConfig
}

// PersonalizationResult is the provider's structured output. Message is
// required; CustomVariables may be partial when the provider omits some.
type PersonalizationResult struct {
	Message         string
	CustomVariables map[string]string
}

// Personalizer generates a personalized message for a single lead.
type Personalizer interface {
	Personalize(ctx context.Context, req PersonalizationRequest) (PersonalizationResult, error)
}
