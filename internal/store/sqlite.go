package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/outreach-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS campaigns (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	user_id         TEXT NOT NULL,
	source          TEXT NOT NULL DEFAULT 'csv',
	lead_count      INTEGER NOT NULL DEFAULT 0,
	completed_count INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS campaign_leads (
	campaign_id TEXT PRIMARY KEY REFERENCES campaigns(id),
	leads       TEXT NOT NULL DEFAULT '[]',
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
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
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_campaigns_user ON campaigns(user_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_campaign ON runs(campaign_id);
CREATE INDEX IF NOT EXISTS idx_runs_user ON runs(user_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateCampaign(ctx context.Context, c model.Campaign) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, name, user_id, source, lead_count, completed_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.UserID, string(c.Source), c.LeadCount, c.CompletedCount, now, now,
	)
	return eris.Wrapf(err, "sqlite: insert campaign %s", c.ID)
}

func (s *SQLiteStore) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	var c model.Campaign
	var source string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, user_id, source, lead_count, completed_count, created_at, updated_at
		 FROM campaigns WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.UserID, &source, &c.LeadCount, &c.CompletedCount, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get campaign %s", id)
	}
	c.Source = model.LeadSource(source)
	return &c, nil
}

func (s *SQLiteStore) UpdateCampaignCompletedCount(ctx context.Context, id string, count int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaigns SET completed_count = ?, updated_at = ? WHERE id = ?`,
		count, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update campaign completed count %s", id)
	}
	return checkRowsAffected(res, "campaign", id)
}

func (s *SQLiteStore) AppendLead(ctx context.Context, campaignID string, lead model.EnrichedLead) (int, error) {
	if lead.PersonalizedMessage == "" {
		zap.L().Warn("skipping lead append without personalized message",
			zap.String("campaign_id", campaignID), zap.String("email", lead.Email))
		return s.leadCount(ctx, campaignID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin append lead")
	}
	defer tx.Rollback()

	var leadsJSON string
	err = tx.QueryRowContext(ctx,
		`SELECT leads FROM campaign_leads WHERE campaign_id = ?`, campaignID,
	).Scan(&leadsJSON)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		leadsJSON = "[]"
	case err != nil:
		return 0, eris.Wrapf(err, "sqlite: read lead collection %s", campaignID)
	}

	leads, err := appendToCollection(leadsJSON, lead)
	if err != nil {
		return 0, err
	}

	updated, err := json.Marshal(leads)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: marshal lead collection")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO campaign_leads (campaign_id, leads, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (campaign_id) DO UPDATE SET leads = excluded.leads, updated_at = excluded.updated_at`,
		campaignID, string(updated), time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: write lead collection %s", campaignID)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit append lead")
	}
	return len(leads), nil
}

func (s *SQLiteStore) leadCount(ctx context.Context, campaignID string) (int, error) {
	var leadsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT leads FROM campaign_leads WHERE campaign_id = ?`, campaignID,
	).Scan(&leadsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: read lead collection %s", campaignID)
	}
	var leads []model.EnrichedLead
	if err := json.Unmarshal([]byte(leadsJSON), &leads); err != nil {
		return 0, eris.Wrap(err, "sqlite: unmarshal lead collection")
	}
	return len(leads), nil
}

func (s *SQLiteStore) GetLeads(ctx context.Context, campaignID string) ([]model.EnrichedLead, error) {
	var leadsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT leads FROM campaign_leads WHERE campaign_id = ?`, campaignID,
	).Scan(&leadsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get leads %s", campaignID)
	}

	var leads []model.EnrichedLead
	if err := json.Unmarshal([]byte(leadsJSON), &leads); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal lead collection")
	}
	return leads, nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run model.Run) error {
	now := time.Now().UTC()
	status := run.Status
	if status == "" {
		status = model.RunStatusPending
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, campaign_id, user_id, status, lead_count, processed_count,
		                   success_count, error_count, qualified_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CampaignID, run.UserID, string(status),
		run.LeadCount, run.ProcessedCount, run.SuccessCount, run.ErrorCount, run.QualifiedCount,
		now, now,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, runID string, upd RunUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin update run")
	}
	defer tx.Rollback()

	run, err := scanRun(tx.QueryRowContext(ctx, sqliteSelectRun+` WHERE id = ?`, runID))
	if err != nil {
		return err
	}
	if run == nil {
		return eris.Errorf("run not found: %s", runID)
	}

	applyUpdate(run, upd)

	_, err = tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, lead_count = ?, processed_count = ?, success_count = ?,
		        error_count = ?, qualified_count = ?, error_message = ?, updated_at = ?
		 WHERE id = ?`,
		string(run.Status), run.LeadCount, run.ProcessedCount, run.SuccessCount,
		run.ErrorCount, run.QualifiedCount, nullIfEmpty(run.ErrorMessage), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run %s", runID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit update run")
}

const sqliteSelectRun = `SELECT id, campaign_id, user_id, status, lead_count, processed_count,
       success_count, error_count, qualified_count, error_message, created_at, updated_at FROM runs`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	return scanRun(s.db.QueryRowContext(ctx, sqliteSelectRun+` WHERE id = ?`, runID))
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := sqliteSelectRun + ` WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.CampaignID != "" {
		query += ` AND campaign_id = ?`
		args = append(args, filter.CampaignID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ExistingEmails(ctx context.Context, userID, excludeCampaignID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cl.leads FROM campaign_leads cl
		 JOIN campaigns c ON c.id = cl.campaign_id
		 WHERE c.user_id = ? AND cl.campaign_id != ?`,
		userID, excludeCampaignID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: existing emails")
	}
	defer rows.Close()

	emails := make(map[string]struct{})
	for rows.Next() {
		var leadsJSON string
		if err := rows.Scan(&leadsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead collection")
		}
		if err := collectEmails(leadsJSON, emails); err != nil {
			return nil, err
		}
	}
	return emails, eris.Wrap(rows.Err(), "sqlite: existing emails iterate")
}

// helpers shared by both implementations

// appendToCollection adds lead to the collection, replacing any existing
// entry with the same normalized email so a re-append keeps the newest
// record.
func appendToCollection(leadsJSON string, lead model.EnrichedLead) ([]model.EnrichedLead, error) {
	var leads []model.EnrichedLead
	if err := json.Unmarshal([]byte(leadsJSON), &leads); err != nil {
		return nil, eris.Wrap(err, "unmarshal lead collection")
	}

	email := lead.NormalizedEmail()
	kept := leads[:0]
	for _, existing := range leads {
		if existing.NormalizedEmail() == email {
			zap.L().Debug("replacing lead in collection", zap.String("email", lead.Email))
			continue
		}
		kept = append(kept, existing)
	}
	return append(kept, lead), nil
}

func collectEmails(leadsJSON string, into map[string]struct{}) error {
	var leads []model.EnrichedLead
	if err := json.Unmarshal([]byte(leadsJSON), &leads); err != nil {
		return eris.Wrap(err, "unmarshal lead collection")
	}
	for _, lead := range leads {
		if email := lead.NormalizedEmail(); email != "" {
			into[email] = struct{}{}
		}
	}
	return nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status string
	var errMsg sql.NullString

	err := row.Scan(&r.ID, &r.CampaignID, &r.UserID, &status,
		&r.LeadCount, &r.ProcessedCount, &r.SuccessCount, &r.ErrorCount, &r.QualifiedCount,
		&errMsg, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan run")
	}

	r.Status = model.RunStatus(status)
	if errMsg.Valid {
		r.ErrorMessage = errMsg.String
	}
	return &r, nil
}
