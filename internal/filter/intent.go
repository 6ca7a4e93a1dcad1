package filter

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/enrich"
	"github.com/sells-group/outreach-cli/internal/model"
)

// DefaultIntentBatchSize bounds concurrent research calls during
// qualification.
const DefaultIntentBatchSize = 5

// IntentFilter qualifies leads against free-text intent signals by asking the
// research provider a YES/NO question. The research produced alongside the
// answer is attached to qualifying leads so personalization can reuse it.
type IntentFilter struct {
	Researcher enrich.Researcher
	BatchSize  int           // default DefaultIntentBatchSize
	Pace       *rate.Limiter // inter-batch pacing; nil disables

	// OnProgress, when set, is invoked after each batch with cumulative
	// processed and qualified counts.
	OnProgress func(ctx context.Context, processed, qualified int)
}

// Apply runs the qualification. A research failure keeps the lead (without
// attached research) rather than blocking the run. Returns EmptyResultError
// when no lead qualifies; returns the context error when cancelled between
// batches.
func (f *IntentFilter) Apply(ctx context.Context, leads []model.Lead, signals, researchPrompt string) ([]model.Lead, error) {
	batchSize := f.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultIntentBatchSize
	}

	zap.L().Info("checking leads against intent signals",
		zap.Int("leads", len(leads)), zap.String("signals", signals))

	qualified := make([]model.Lead, 0, len(leads))
	processed := 0

	for start := 0; start < len(leads); start += batchSize {
		if f.Pace != nil {
			if err := f.Pace.Wait(ctx); err != nil {
				return nil, err
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + batchSize
		if end > len(leads) {
			end = len(leads)
		}
		batch := leads[start:end]

		type outcome struct {
			lead    model.Lead
			matches bool
		}
		outcomes := make([]outcome, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, lead := range batch {
			g.Go(func() error {
				result, err := f.Researcher.Research(gctx, enrich.ResearchRequest{
					SystemPrompt: intentSystemPrompt(researchPrompt, signals, lead),
					UserPrompt:   intentUserPrompt(signals, lead),
					Lead:         lead,
				})
				if err != nil {
					// Keep the lead rather than blocking the campaign.
					zap.L().Warn("intent check failed, keeping lead",
						zap.String("email", lead.Email), zap.Error(err))
					outcomes[i] = outcome{lead: lead, matches: true}
					return nil
				}

				if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(result.Research)), "YES") {
					lead.AttachedResearch = result.Research
					outcomes[i] = outcome{lead: lead, matches: true}
				} else {
					outcomes[i] = outcome{lead: lead, matches: false}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, o := range outcomes {
			if o.matches {
				qualified = append(qualified, o.lead)
			}
		}
		processed += len(batch)

		if f.OnProgress != nil {
			f.OnProgress(ctx, processed, len(qualified))
		}
	}

	zap.L().Info("intent filter applied",
		zap.Int("before", len(leads)), zap.Int("after", len(qualified)))

	if len(qualified) == 0 && len(leads) > 0 {
		return nil, &EmptyResultError{Filter: "intent"}
	}
	return qualified, nil
}

func intentSystemPrompt(researchPrompt, signals string, lead model.Lead) string {
	return fmt.Sprintf("%s\n\nIntent Signals to Check: %s\n\n"+
		"First, determine if company %s meets these intent signals and start your response with \"YES\" or \"NO\".\n\n"+
		"Then, regardless of your answer, provide detailed research about the company that would be useful for "+
		"personalized outreach (recent news, achievements, key information, etc.).",
		researchPrompt, signals, lead.Company)
}

func intentUserPrompt(signals string, lead model.Lead) string {
	target := lead.Company
	if lead.CompanyURL != "" {
		target += " (" + lead.CompanyURL + ")"
	}
	return fmt.Sprintf("Research %s and determine if they match the intent signals: %q. "+
		"Start with YES or NO, then provide useful research about the company.", target, signals)
}
