package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/db"
	"github.com/sells-group/outreach-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS campaigns (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	user_id         TEXT NOT NULL,
	source          TEXT NOT NULL DEFAULT 'csv',
	lead_count      INTEGER NOT NULL DEFAULT 0,
	completed_count INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS campaign_leads (
	campaign_id TEXT PRIMARY KEY REFERENCES campaigns(id),
	leads       JSONB NOT NULL DEFAULT '[]',
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	campaign_id     TEXT NOT NULL REFERENCES campaigns(id),
	user_id         TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	lead_count      INTEGER NOT NULL DEFAULT 0,
	processed_count INTEGER NOT NULL DEFAULT 0,
	success_count   INTEGER NOT NULL DEFAULT 0,
	error_count     INTEGER NOT NULL DEFAULT 0,
	qualified_count INTEGER NOT NULL DEFAULT 0,
	error_message   TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_campaigns_user ON campaigns(user_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_campaign ON runs(campaign_id);
CREATE INDEX IF NOT EXISTS idx_runs_user ON runs(user_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateCampaign(ctx context.Context, c model.Campaign) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO campaigns (id, name, user_id, source, lead_count, completed_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Name, c.UserID, string(c.Source), c.LeadCount, c.CompletedCount, now, now,
	)
	return eris.Wrapf(err, "postgres: insert campaign %s", c.ID)
}

func (s *PostgresStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	var c model.Campaign
	var source string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, user_id, source, lead_count, completed_count, created_at, updated_at
		 FROM campaigns WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.UserID, &source, &c.LeadCount, &c.CompletedCount, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get campaign %s", id)
	}
	c.Source = model.LeadSource(source)
	return &c, nil
}

func (s *PostgresStore) UpdateCampaignCompletedCount(ctx context.Context, id string, count int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE campaigns SET completed_count = $1, updated_at = $2 WHERE id = $3`,
		count, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update campaign completed count %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("campaign not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) AppendLead(ctx context.Context, campaignID string, lead model.EnrichedLead) (int, error) {
	if lead.PersonalizedMessage == "" {
		zap.L().Warn("skipping lead append without personalized message",
			zap.String("campaign_id", campaignID), zap.String("email", lead.Email))
		return s.leadCount(ctx, campaignID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin append lead")
	}
	defer tx.Rollback(ctx)

	var leadsJSON []byte
	err = tx.QueryRow(ctx,
		`SELECT leads FROM campaign_leads WHERE campaign_id = $1 FOR UPDATE`, campaignID,
	).Scan(&leadsJSON)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		leadsJSON = []byte("[]")
	case err != nil:
		return 0, eris.Wrapf(err, "postgres: read lead collection %s", campaignID)
	}

	leads, err := appendToCollection(string(leadsJSON), lead)
	if err != nil {
		return 0, err
	}

	updated, err := json.Marshal(leads)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: marshal lead collection")
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO campaign_leads (campaign_id, leads, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (campaign_id) DO UPDATE SET leads = $2, updated_at = $3`,
		campaignID, updated, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: write lead collection %s", campaignID)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit append lead")
	}
	return len(leads), nil
}

func (s *PostgresStore) leadCount(ctx context.Context, campaignID string) (int, error) {
	leads, err := s.GetLeads(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	return len(leads), nil
}

func (s *PostgresStore) GetLeads(ctx context.Context, campaignID string) ([]model.EnrichedLead, error) {
	var leadsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT leads FROM campaign_leads WHERE campaign_id = $1`, campaignID,
	).Scan(&leadsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get leads %s", campaignID)
	}

	var leads []model.EnrichedLead
	if err := json.Unmarshal(leadsJSON, &leads); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal lead collection")
	}
	return leads, nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run model.Run) error {
	now := time.Now().UTC()
	status := run.Status
	if status == "" {
		status = model.RunStatusPending
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, campaign_id, user_id, status, lead_count, processed_count,
		                   success_count, error_count, qualified_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		run.ID, run.CampaignID, run.UserID, string(status),
		run.LeadCount, run.ProcessedCount, run.SuccessCount, run.ErrorCount, run.QualifiedCount,
		now, now,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

const postgresSelectRun = `SELECT id, campaign_id, user_id, status, lead_count, processed_count,
       success_count, error_count, qualified_count, error_message, created_at, updated_at FROM runs`

func (s *PostgresStore) UpdateRun(ctx context.Context, runID string, upd RunUpdate) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin update run")
	}
	defer tx.Rollback(ctx)

	run, err := scanPgRun(tx.QueryRow(ctx, postgresSelectRun+` WHERE id = $1 FOR UPDATE`, runID))
	if err != nil {
		return err
	}
	if run == nil {
		return eris.Errorf("run not found: %s", runID)
	}

	applyUpdate(run, upd)

	_, err = tx.Exec(ctx,
		`UPDATE runs SET status = $1, lead_count = $2, processed_count = $3, success_count = $4,
		        error_count = $5, qualified_count = $6, error_message = $7, updated_at = $8
		 WHERE id = $9`,
		string(run.Status), run.LeadCount, run.ProcessedCount, run.SuccessCount,
		run.ErrorCount, run.QualifiedCount, nullIfEmpty(run.ErrorMessage), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run %s", runID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit update run")
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	return scanPgRun(s.pool.QueryRow(ctx, postgresSelectRun+` WHERE id = $1`, runID))
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := postgresSelectRun + ` WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.UserID != "" {
		query += fmt.Sprintf(` AND user_id = $%d`, argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}
	if filter.CampaignID != "" {
		query += fmt.Sprintf(` AND campaign_id = $%d`, argIdx)
		args = append(args, filter.CampaignID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ExistingEmails(ctx context.Context, userID, excludeCampaignID string) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT cl.leads FROM campaign_leads cl
		 JOIN campaigns c ON c.id = cl.campaign_id
		 WHERE c.user_id = $1 AND cl.campaign_id != $2`,
		userID, excludeCampaignID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: existing emails")
	}
	defer rows.Close()

	emails := make(map[string]struct{})
	for rows.Next() {
		var leadsJSON []byte
		if err := rows.Scan(&leadsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead collection")
		}
		if err := collectEmails(string(leadsJSON), emails); err != nil {
			return nil, err
		}
	}
	return emails, eris.Wrap(rows.Err(), "postgres: existing emails iterate")
}

func scanPgRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status string
	var errMsg *string

	err := row.Scan(&r.ID, &r.CampaignID, &r.UserID, &status,
		&r.LeadCount, &r.ProcessedCount, &r.SuccessCount, &r.ErrorCount, &r.QualifiedCount,
		&errMsg, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan run")
	}

	r.Status = model.RunStatus(status)
	if errMsg != nil {
		r.ErrorMessage = *errMsg
	}
	return &r, nil
}
