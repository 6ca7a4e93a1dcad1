package enrich

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

// MaxBatchSize is the hard ceiling on concurrent lead personalization,
// applied regardless of configuration.
const MaxBatchSize = 10

// Sink is the slice of the store the engine writes through.
type Sink interface {
	AppendLead(ctx context.Context, campaignID string, lead model.EnrichedLead) (int, error)
	UpdateCampaignCompletedCount(ctx context.Context, id string, count int) error
	UpdateRun(ctx context.Context, runID string, upd store.RunUpdate) error
}

// Engine personalizes leads in bounded parallel batches, persisting each
// success immediately so a mid-run crash loses at most one batch of progress.
type Engine struct {
	Sink         Sink
	Researcher   Researcher
	Personalizer Personalizer

	BatchSize int           // capped at MaxBatchSize
	Pace      *rate.Limiter // inter-batch pacing; nil disables
}

// Job identifies the campaign and run a batch of leads belongs to.
type Job struct {
	CampaignID string
	RunID      string
	Leads      []model.Lead
	Config     model.PersonalizationConfig
}

// Run processes every lead in the job and returns one outcome per lead, in
// input order. Individual provider failures mark leads failed and never stop
// the run; the returned error is non-nil only when the engine cannot start or
// the context is cancelled between batches.
func (e *Engine) Run(ctx context.Context, job Job) ([]model.EnrichedLead, error) {
	if e.Sink == nil || e.Researcher == nil || e.Personalizer == nil {
		return nil, eris.New("engine: sink, researcher, and personalizer are required")
	}

	batchSize := e.BatchSize
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}

	var (
		outcomes  = make([]model.EnrichedLead, 0, len(job.Leads))
		processed int
		succeeded int
		failed    int
	)

	for start := 0; start < len(job.Leads); start += batchSize {
		if e.Pace != nil {
			if err := e.Pace.Wait(ctx); err != nil {
				return outcomes, err
			}
		} else if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		end := start + batchSize
		if end > len(job.Leads) {
			end = len(job.Leads)
		}
		batch := job.Leads[start:end]

		zap.L().Info("processing personalization batch",
			zap.String("run_id", job.RunID),
			zap.Int("batch_start", start), zap.Int("batch_size", len(batch)))

		results := make([]model.EnrichedLead, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, lead := range batch {
			g.Go(func() error {
				results[i] = e.personalizeLead(gctx, lead, job.Config)
				return nil
			})
		}
		_ = g.Wait()

		for _, result := range results {
			processed++
			if result.Status != model.EnrichmentEnriched {
				failed++
				outcomes = append(outcomes, result)
				continue
			}

			size, err := e.Sink.AppendLead(ctx, job.CampaignID, result)
			if err != nil {
				zap.L().Error("persisting enriched lead failed",
					zap.String("email", result.Email), zap.Error(err))
				result.Status = model.EnrichmentFailed
				failed++
				outcomes = append(outcomes, result)
				continue
			}
			succeeded++
			outcomes = append(outcomes, result)

			if err := e.Sink.UpdateCampaignCompletedCount(ctx, job.CampaignID, size); err != nil {
				zap.L().Warn("updating campaign completed count failed",
					zap.String("campaign_id", job.CampaignID), zap.Error(err))
			}
		}

		if err := e.Sink.UpdateRun(ctx, job.RunID, store.RunUpdate{
			Status: model.RunStatusPersonalizing,
			Counts: model.RunCounts{
				ProcessedCount: model.Int(processed),
				SuccessCount:   model.Int(succeeded),
				ErrorCount:     model.Int(failed),
			},
		}); err != nil {
			zap.L().Warn("updating run progress failed",
				zap.String("run_id", job.RunID), zap.Error(err))
		}
	}

	zap.L().Info("personalization complete",
		zap.String("run_id", job.RunID),
		zap.Int("succeeded", succeeded), zap.Int("failed", failed))
	return outcomes, nil
}

// personalizeLead runs the two provider steps for one lead. Any failure
// yields a failed outcome; research attached during intent qualification is
// reused instead of a fresh provider call.
func (e *Engine) personalizeLead(ctx context.Context, lead model.Lead, cfg model.PersonalizationConfig) model.EnrichedLead {
	enriched := model.EnrichedLead{Lead: lead, Status: model.EnrichmentPending}

	research := lead.AttachedResearch
	if research == "" {
		result, err := e.Researcher.Research(ctx, ResearchRequest{
			SystemPrompt: cfg.ResearchPrompt,
			UserPrompt:   buildResearchUserPrompt(lead),
			Lead:         lead,
		})
		if err != nil {
			zap.L().Warn("research failed",
				zap.String("email", lead.Email), zap.Error(err))
			enriched.Status = model.EnrichmentFailed
			return enriched
		}
		research = result.Research
	} else {
		zap.L().Debug("reusing qualification research", zap.String("email", lead.Email))
	}
	enriched.Research = research

	result, err := e.Personalizer.Personalize(ctx, PersonalizationRequest{
		Lead:     lead,
		Research: research,
		Config:   cfg,
	})
	if err != nil {
		zap.L().Warn("personalization failed",
			zap.String("email", lead.Email), zap.Error(err))
		enriched.Status = model.EnrichmentFailed
		return enriched
	}
	if result.Message == "" {
		zap.L().Warn("personalization returned empty message", zap.String("email", lead.Email))
		enriched.Status = model.EnrichmentFailed
		return enriched
	}

	enriched.PersonalizedMessage = result.Message
	enriched.CustomVariables = result.CustomVariables
	enriched.Status = model.EnrichmentEnriched
	return enriched
}

func buildResearchUserPrompt(lead model.Lead) string {
	target := lead.Company
	if lead.CompanyURL != "" {
		target += " (" + lead.CompanyURL + ")"
	}
	return fmt.Sprintf(`Please research %s and provide insights about:
- Recent news, updates, or changes
- Industry challenges they might be facing
- Any relevant context for cold outreach

Focus on factual, recent information that would be valuable for personalized outreach.`, target)
}
