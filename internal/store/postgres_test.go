package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var pgRunColumns = []string{
	"id", "campaign_id", "user_id", "status", "lead_count", "processed_count",
	"success_count", "error_count", "qualified_count", "error_message", "created_at", "updated_at",
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, campaign_id, user_id, status`).
		WithArgs("missing-run").
		WillReturnError(pgx.ErrNoRows)

	run, err := s.GetRun(context.Background(), "missing-run")
	require.NoError(t, err)
	assert.Nil(t, run)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	msg := "boom"

	mock.ExpectQuery(`SELECT id, campaign_id, user_id, status`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(pgRunColumns).
			AddRow("run-1", "camp-1", "user-1", "failed", 10, 10, 7, 3, 0, &msg, now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Equal(t, 7, run.SuccessCount)
	assert.Equal(t, "boom", run.ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs("run-1", "camp-1", "user-1", "pending", 0, 0, 0, 0, 0,
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.CreateRun(context.Background(), model.Run{
		ID: "run-1", CampaignID: "camp-1", UserID: "user-1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRun_MergesAndWrites(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, campaign_id, user_id, status`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(pgRunColumns).
			AddRow("run-1", "camp-1", "user-1", "personalizing", 10, 0, 0, 0, 0, nil, now, now))
	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("personalizing", 10, 5, 4, 1, 0, nil, pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := s.UpdateRun(context.Background(), "run-1", RunUpdate{
		// Regressive status is dropped while the counts merge.
		Status: model.RunStatusExtracting,
		Counts: model.RunCounts{
			ProcessedCount: model.Int(5),
			SuccessCount:   model.Int(4),
			ErrorCount:     model.Int(1),
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, campaign_id, user_id, status`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := s.UpdateRun(context.Background(), "missing", RunUpdate{Status: model.RunStatusFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendLead_NewCollection(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT leads FROM campaign_leads`).
		WithArgs("camp-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO campaign_leads`).
		WithArgs("camp-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.AppendLead(context.Background(), "camp-1", enriched("a@x.com", "Hi"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// jsonContains matches a []byte query argument containing the substring.
type jsonContains string

func (j jsonContains) Match(v any) bool {
	b, ok := v.([]byte)
	return ok && strings.Contains(string(b), string(j))
}

func TestPostgresStore_AppendLead_DuplicateEmailReplaced(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	existing := `[{"email":"a@x.com","company":"Acme","first_name":"","last_name":"","personalized_message":"Hi","enrichment_status":"enriched"}]`

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT leads FROM campaign_leads`).
		WithArgs("camp-1").
		WillReturnRows(pgxmock.NewRows([]string{"leads"}).AddRow([]byte(existing)))
	mock.ExpectExec(`INSERT INTO campaign_leads`).
		WithArgs("camp-1", jsonContains("Hi again"), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.AppendLead(context.Background(), "camp-1", enriched("A@X.com", "Hi again"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLeads_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT leads FROM campaign_leads`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	leads, err := s.GetLeads(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, leads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExistingEmails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"leads"}).
		AddRow([]byte(`[{"email":"a@x.com"},{"email":"B@X.com"}]`)).
		AddRow([]byte(`[{"email":"c@x.com"}]`))

	mock.ExpectQuery(`SELECT cl.leads FROM campaign_leads cl`).
		WithArgs("user-1", "camp-9").
		WillReturnRows(rows)

	emails, err := s.ExistingEmails(context.Background(), "user-1", "camp-9")
	require.NoError(t, err)
	assert.Len(t, emails, 3)
	assert.Contains(t, emails, "b@x.com")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCampaign_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, user_id, source`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetCampaign(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCampaignCompletedCount_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE campaigns SET completed_count`).
		WithArgs(3, pgxmock.AnyArg(), "nope").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateCampaignCompletedCount(context.Background(), "nope", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
