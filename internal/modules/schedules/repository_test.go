package schedules

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/bluum-finance/autoinvest/internal/domain"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE schedules (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			portfolio_id TEXT NOT NULL,
			funding_source_id TEXT NOT NULL,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL DEFAULT 'USD',
			frequency TEXT NOT NULL,
			timing_json TEXT NOT NULL,
			allocation_rule TEXT NOT NULL DEFAULT 'policy',
			status TEXT NOT NULL DEFAULT 'active',
			start_date TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	require.NoError(t, err)

	return db
}

func insertTestSchedule(t *testing.T, repo *Repository, db *sql.DB, s *Schedule) {
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.InsertTx(tx, s))
	require.NoError(t, tx.Commit())
}

func newTestSchedule(id, accountID string) *Schedule {
	day := 15
	return &Schedule{
		ID:              id,
		AccountID:       accountID,
		PortfolioID:     "port-1",
		FundingSourceID: "fund-1",
		Amount:          decimal.RequireFromString("150.50"),
		Currency:        "USD",
		Frequency:       FrequencyMonthly,
		Timing:          Timing{DayOfMonth: &day},
		AllocationRule:  "policy",
		Status:          StatusActive,
		StartDate:       "2026-09-15",
		CreatedAt:       "2026-08-30T10:00:00Z",
		UpdatedAt:       "2026-08-30T10:00:00Z",
	}
}

func TestRepositoryInsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	s := newTestSchedule("sched-1", "acct-1")
	insertTestSchedule(t, repo, db, s)

	got, err := repo.Get("acct-1", "sched-1")
	require.NoError(t, err)

	assert.Equal(t, s.ID, got.ID)
	assert.True(t, got.Amount.Equal(s.Amount))
	assert.Equal(t, FrequencyMonthly, got.Frequency)
	require.NotNil(t, got.Timing.DayOfMonth)
	assert.Equal(t, 15, *got.Timing.DayOfMonth)
	assert.Equal(t, StatusActive, got.Status)
}

func TestRepositoryGetScopedToAccount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	insertTestSchedule(t, repo, db, newTestSchedule("sched-1", "acct-1"))

	_, err := repo.Get("acct-2", "sched-1")
	var notFound *domain.NotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "schedule", notFound.Entity)
}

func TestRepositoryGetUnknownID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	_, err := repo.Get("acct-1", "missing")
	var notFound *domain.NotFound
	require.ErrorAs(t, err, &notFound)
}

func TestRepositoryListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	active := newTestSchedule("sched-1", "acct-1")
	insertTestSchedule(t, repo, db, active)

	paused := newTestSchedule("sched-2", "acct-1")
	paused.Status = StatusPaused
	paused.PortfolioID = "port-2"
	insertTestSchedule(t, repo, db, paused)

	other := newTestSchedule("sched-3", "acct-2")
	insertTestSchedule(t, repo, db, other)

	all, err := repo.List("acct-1", ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pausedOnly, err := repo.List("acct-1", ListFilter{Status: StatusPaused})
	require.NoError(t, err)
	require.Len(t, pausedOnly, 1)
	assert.Equal(t, "sched-2", pausedOnly[0].ID)

	byPortfolio, err := repo.List("acct-1", ListFilter{PortfolioID: "port-1"})
	require.NoError(t, err)
	require.Len(t, byPortfolio, 1)
	assert.Equal(t, "sched-1", byPortfolio[0].ID)

	empty, err := repo.List("acct-3", ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRepositoryUpdateTx(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	s := newTestSchedule("sched-1", "acct-1")
	insertTestSchedule(t, repo, db, s)

	s.Amount = decimal.RequireFromString("300")
	s.Status = StatusPaused
	s.UpdatedAt = "2026-08-31T09:00:00Z"

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.UpdateTx(tx, s))
	require.NoError(t, tx.Commit())

	got, err := repo.Get("acct-1", "sched-1")
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("300")))
	assert.Equal(t, StatusPaused, got.Status)
	assert.Equal(t, "2026-08-31T09:00:00Z", got.UpdatedAt)
}

func TestRepositoryUpdateTxUnknownSchedule(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	s := newTestSchedule("ghost", "acct-1")

	tx, err := db.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	err = repo.UpdateTx(tx, s)
	var notFound *domain.NotFound
	require.ErrorAs(t, err, &notFound)
}
