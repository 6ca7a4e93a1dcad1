package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/enrich"
	"github.com/sells-group/outreach-cli/internal/orchestrator"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/perplexity"
	"github.com/sells-group/outreach-cli/pkg/slack"
)

// env bundles the wired pipeline components a command needs.
type env struct {
	Store store.Store
	Orch  *orchestrator.Orchestrator
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close", zap.Error(err))
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "init postgres store")
		}
		return st, nil
	case "", "sqlite":
		st, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "init sqlite store")
		}
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initEnv wires the store, providers and notifier from config. Providers
// without an API key fall back to deterministic stubs so the pipeline can
// run end to end in demo setups.
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	retry := resilience.RetryConfig{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Timeout:  cfg.Retry.Timeout,
	}

	var researcher enrich.Researcher
	if cfg.Perplexity.Key != "" {
		pc := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
			perplexity.WithRateLimit(cfg.Perplexity.RPS),
		)
		researcher = enrich.NewPerplexityResearcher(pc, cfg.Perplexity.Model, retry)
	} else {
		zap.L().Warn("perplexity key not configured, using stub researcher")
		researcher = enrich.StubResearcher{}
	}

	var personalizer enrich.Personalizer
	if cfg.Anthropic.Key != "" {
		ac := anthropic.NewClient(cfg.Anthropic.Key)
		personalizer = enrich.NewAnthropicPersonalizer(ac, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, retry)
	} else {
		zap.L().Warn("anthropic key not configured, using stub personalizer")
		personalizer = enrich.StubPersonalizer{}
	}

	var notifier orchestrator.Notifier
	if cfg.Slack.WebhookURL != "" {
		notifier = slackNotifier{client: slack.New(cfg.Slack.WebhookURL)}
	}

	return &env{
		Store: st,
		Orch: &orchestrator.Orchestrator{
			Store:           st,
			Researcher:      researcher,
			Personalizer:    personalizer,
			Notifier:        notifier,
			BatchSize:       cfg.Engine.MaxBatchSize,
			IntentBatchSize: cfg.Engine.IntentBatchSize,
			BatchDelay:      cfg.Engine.BatchDelay,
			DemoLeadLimit:   cfg.Engine.DemoLeadLimit,
		},
	}, nil
}

// slackNotifier adapts the Slack webhook client to the orchestrator's
// notification interface.
type slackNotifier struct {
	client *slack.Client
}

func (n slackNotifier) NotifyComplete(ctx context.Context, note orchestrator.Notification) error {
	return n.client.NotifyCampaignComplete(ctx, note.CampaignName, note.RunID, slack.Stats{
		TotalLeads:   note.TotalLeads,
		SuccessCount: note.SuccessCount,
		FailureCount: note.FailureCount,
		Duration:     note.Duration.Round(time.Second).String(),
	})
}

func (n slackNotifier) NotifyFailed(ctx context.Context, campaignName, runID, errMessage string) error {
	return n.client.NotifyCampaignFailed(ctx, campaignName, runID, errMessage)
}
