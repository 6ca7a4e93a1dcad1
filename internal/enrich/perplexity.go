package enrich

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/pkg/perplexity"
)

// PerplexityResearcher implements Researcher against the Perplexity chat
// completions API. Each call retries per the configured policy with a fresh
// per-attempt timeout.
type PerplexityResearcher struct {
	client perplexity.Client
	model  string
	retry  resilience.RetryConfig
}

// NewPerplexityResearcher creates a researcher backed by the given client.
// A zero retry config falls back to the default policy.
func NewPerplexityResearcher(client perplexity.Client, model string, retry resilience.RetryConfig) *PerplexityResearcher {
	if retry.Attempts == 0 {
		retry = resilience.DefaultRetryConfig()
	}
	return &PerplexityResearcher{
		client: client,
		model:  model,
		retry:  retry,
	}
}

func (r *PerplexityResearcher) Research(ctx context.Context, req ResearchRequest) (ResearchResult, error) {
	cfg := r.retry
	cfg.ShouldRetry = resilience.LogRetries("perplexity", "research", resilience.RetryAll)

	resp, err := resilience.Do(ctx, cfg, func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
		return r.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
			Model: r.model,
			Messages: []perplexity.Message{
				{Role: "system", Content: req.SystemPrompt},
				{Role: "user", Content: req.UserPrompt},
			},
		})
	})
	if err != nil {
		return ResearchResult{}, eris.Wrap(err, "enrich: research request")
	}

	research := strings.TrimSpace(resp.Content())
	if research == "" {
		return ResearchResult{}, eris.New("enrich: empty research response")
	}

	zap.L().Debug("research completed",
		zap.String("company", req.Lead.Company),
		zap.String("email", req.Lead.NormalizedEmail()),
		zap.Int("citations", len(resp.Citations)),
	)

	return ResearchResult{
		Research:  research,
		Citations: resp.Citations,
	}, nil
}
