// Package orchestrator sequences a campaign run end to end: validation,
// extraction, filtering, personalization, run state, and notification.
package orchestrator

import (
	"bytes"
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/enrich"
	"github.com/sells-group/outreach-cli/internal/extract"
	"github.com/sells-group/outreach-cli/internal/filter"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

// Notification carries the stats reported when a campaign finishes.
type Notification struct {
	CampaignName string
	RunID        string
	TotalLeads   int
	SuccessCount int
	FailureCount int
	Duration     time.Duration
}

// Notifier delivers completion and failure notifications. Errors are logged
// and never fail a run.
type Notifier interface {
	NotifyComplete(ctx context.Context, n Notification) error
	NotifyFailed(ctx context.Context, campaignName, runID, errMessage string) error
}

// Orchestrator runs campaigns against a store and a pair of providers.
type Orchestrator struct {
	Store        store.Store
	Researcher   enrich.Researcher
	Personalizer enrich.Personalizer
	Notifier     Notifier // nil disables notifications

	BatchSize       int           // engine batch size, capped at enrich.MaxBatchSize
	IntentBatchSize int           // qualification batch size
	BatchDelay      time.Duration // inter-batch pacing for both phases
	DemoLeadLimit   int
}

// ProcessCampaign executes one run. Validation failures return before any
// store write; every later failure marks the run failed with the error
// message and returns a wrapped error.
func (o *Orchestrator) ProcessCampaign(ctx context.Context, input CampaignInput) error {
	if err := input.Validate(); err != nil {
		return err
	}

	log := zap.L().With(
		zap.String("run_id", input.RunID),
		zap.String("campaign_id", input.CampaignID),
	)
	log.Info("starting campaign processing",
		zap.String("source", string(input.Source)),
		zap.Bool("demo", input.Demo),
		zap.Bool("notify", input.NotifyOnComplete),
	)
	started := time.Now()

	if err := o.prepareRecords(ctx, input); err != nil {
		return eris.Wrap(err, "orchestrator: prepare records")
	}

	outcomes, total, err := o.process(ctx, input)
	if err != nil {
		o.failRun(ctx, input, err)
		return eris.Wrap(err, "orchestrator: process campaign")
	}

	succeeded, failed := 0, 0
	for _, out := range outcomes {
		if out.Status == model.EnrichmentEnriched {
			succeeded++
		} else {
			failed++
		}
	}
	log.Info("campaign processing completed",
		zap.Int("total", total),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(started)),
	)

	if input.NotifyOnComplete && o.Notifier != nil {
		if err := o.Notifier.NotifyComplete(ctx, Notification{
			CampaignName: input.CampaignName,
			RunID:        input.RunID,
			TotalLeads:   total,
			SuccessCount: succeeded,
			FailureCount: failed,
			Duration:     time.Since(started),
		}); err != nil {
			log.Warn("completion notification failed", zap.Error(err))
		}
	}

	return nil
}

// prepareRecords makes sure campaign and run rows exist before the status
// machine starts moving.
func (o *Orchestrator) prepareRecords(ctx context.Context, input CampaignInput) error {
	campaign, err := o.Store.GetCampaign(ctx, input.CampaignID)
	if err != nil {
		return err
	}
	if campaign == nil {
		if err := o.Store.CreateCampaign(ctx, model.Campaign{
			ID:     input.CampaignID,
			Name:   input.CampaignName,
			UserID: input.UserID,
			Source: input.Source,
		}); err != nil {
			return err
		}
	}

	run, err := o.Store.GetRun(ctx, input.RunID)
	if err != nil {
		return err
	}
	if run == nil {
		return o.Store.CreateRun(ctx, model.Run{
			ID:         input.RunID,
			CampaignID: input.CampaignID,
			UserID:     input.UserID,
			Status:     model.RunStatusPending,
		})
	}
	return nil
}

// process walks the pipeline and returns the engine outcomes plus the number
// of leads that reached personalization.
func (o *Orchestrator) process(ctx context.Context, input CampaignInput) ([]model.EnrichedLead, int, error) {
	if err := o.updateRun(ctx, input.RunID, store.RunUpdate{Status: model.RunStatusExtracting}); err != nil {
		return nil, 0, err
	}

	leads, err := extract.Leads(bytes.NewReader(input.Data), extract.Options{
		Format:    extract.Format(input.Source),
		Demo:      input.Demo,
		DemoLimit: o.DemoLeadLimit,
	})
	if err != nil {
		return nil, 0, err
	}
	if len(leads) == 0 {
		return nil, 0, eris.New("orchestrator: no valid leads found to process")
	}
	zap.L().Info("leads extracted", zap.String("run_id", input.RunID), zap.Int("count", len(leads)))

	if input.RevenueMin != nil || input.RevenueMax != nil {
		leads, err = filter.Revenue(leads, input.RevenueMin, input.RevenueMax)
		if err != nil {
			return nil, 0, err
		}
	}

	if input.SkipDuplicates {
		leads, err = filter.Duplicates(ctx, o.Store, input.UserID, input.CampaignID, leads)
		if err != nil {
			return nil, 0, err
		}
	}

	if input.IntentSignals != "" {
		leads, err = o.qualify(ctx, input, leads)
		if err != nil {
			return nil, 0, err
		}
	}

	if err := o.updateRun(ctx, input.RunID, store.RunUpdate{
		Status: model.RunStatusPersonalizing,
		Counts: model.RunCounts{
			LeadCount:      model.Int(len(leads)),
			ProcessedCount: model.Int(0),
		},
	}); err != nil {
		return nil, 0, err
	}

	engine := &enrich.Engine{
		Sink:         o.Store,
		Researcher:   o.Researcher,
		Personalizer: o.Personalizer,
		BatchSize:    o.BatchSize,
		Pace:         o.pace(),
	}
	outcomes, err := engine.Run(ctx, enrich.Job{
		CampaignID: input.CampaignID,
		RunID:      input.RunID,
		Leads:      leads,
		Config:     input.Config,
	})
	if err != nil {
		return nil, 0, err
	}

	if err := o.updateRun(ctx, input.RunID, store.RunUpdate{Status: model.RunStatusCompleted}); err != nil {
		return nil, 0, err
	}

	return outcomes, len(leads), nil
}

// qualify runs the intent-signal filter with per-batch progress written to
// the run record.
func (o *Orchestrator) qualify(ctx context.Context, input CampaignInput, leads []model.Lead) ([]model.Lead, error) {
	if err := o.updateRun(ctx, input.RunID, store.RunUpdate{
		Status: model.RunStatusQualifying,
		Counts: model.RunCounts{
			LeadCount:      model.Int(len(leads)),
			ProcessedCount: model.Int(0),
		},
	}); err != nil {
		return nil, err
	}

	intent := &filter.IntentFilter{
		Researcher: o.Researcher,
		BatchSize:  o.IntentBatchSize,
		Pace:       o.pace(),
		OnProgress: func(ctx context.Context, processed, qualified int) {
			if err := o.updateRun(ctx, input.RunID, store.RunUpdate{
				Status: model.RunStatusQualifying,
				Counts: model.RunCounts{
					ProcessedCount: model.Int(processed),
					QualifiedCount: model.Int(qualified),
				},
			}); err != nil {
				zap.L().Warn("qualification progress write failed",
					zap.String("run_id", input.RunID), zap.Error(err))
			}
		},
	}
	return intent.Apply(ctx, leads, input.IntentSignals, input.Config.ResearchPrompt)
}

func (o *Orchestrator) pace() *rate.Limiter {
	if o.BatchDelay <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(o.BatchDelay), 1)
}

func (o *Orchestrator) updateRun(ctx context.Context, runID string, upd store.RunUpdate) error {
	return o.Store.UpdateRun(ctx, runID, upd)
}

// failRun records the failure on the run and fires the failure notification.
// The original ctx may already be cancelled, so the writes use a detached
// context.
func (o *Orchestrator) failRun(ctx context.Context, input CampaignInput, cause error) {
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := o.updateRun(detached, input.RunID, store.RunUpdate{
		Status:       model.RunStatusFailed,
		ErrorMessage: cause.Error(),
	}); err != nil {
		zap.L().Error("recording run failure failed",
			zap.String("run_id", input.RunID), zap.Error(err))
	}

	if input.NotifyOnComplete && o.Notifier != nil {
		if err := o.Notifier.NotifyFailed(detached, input.CampaignName, input.RunID, cause.Error()); err != nil {
			zap.L().Warn("failure notification failed",
				zap.String("run_id", input.RunID), zap.Error(err))
		}
	}
}
