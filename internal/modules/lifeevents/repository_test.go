package lifeevents

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
		CREATE TABLE life_events (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL,
			name TEXT NOT NULL,
			event_type TEXT NOT NULL,
			expected_date TEXT NOT NULL,
			estimated_cost TEXT NOT NULL,
			currency TEXT NOT NULL DEFAULT 'USD',
			recurring INTEGER NOT NULL DEFAULT 0,
			linked_goal_id TEXT,
			notes TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	require.NoError(t, err)

	return db
}

func insertEvent(t *testing.T, repo *Repository, db *sql.DB, ev *LifeEvent) {
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.InsertTx(tx, ev))
	require.NoError(t, tx.Commit())
}

func newEvent(id, accountID string) *LifeEvent {
	return &LifeEvent{
		ID:            id,
		AccountID:     accountID,
		Name:          "Wedding",
		EventType:     TypeWedding,
		ExpectedDate:  "2027-06-12",
		EstimatedCost: decimal.RequireFromString("25000"),
		Currency:      "USD",
		Status:        StatusActive,
		CreatedAt:     "2026-08-30T10:00:00Z",
		UpdatedAt:     "2026-08-30T10:00:00Z",
	}
}

func TestRepositoryInsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	ev := newEvent("ev-1", "acct-1")
	ev.Recurring = true
	ev.LinkedGoalID = "goal-9"
	ev.Notes = "venue deposit due early"
	insertEvent(t, repo, db, ev)

	got, err := repo.Get("acct-1", "ev-1")
	require.NoError(t, err)

	assert.Equal(t, TypeWedding, got.EventType)
	assert.True(t, got.EstimatedCost.Equal(ev.EstimatedCost))
	assert.True(t, got.Recurring)
	assert.Equal(t, "goal-9", got.LinkedGoalID)
	assert.Equal(t, "venue deposit due early", got.Notes)
}

func TestRepositoryOptionalFieldsStoredAsNull(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	insertEvent(t, repo, db, newEvent("ev-1", "acct-1"))

	got, err := repo.Get("acct-1", "ev-1")
	require.NoError(t, err)
	assert.Empty(t, got.LinkedGoalID)
	assert.Empty(t, got.Notes)

	var linked sql.NullString
	err = db.QueryRow(`SELECT linked_goal_id FROM life_events WHERE id = 'ev-1'`).Scan(&linked)
	require.NoError(t, err)
	assert.False(t, linked.Valid)
}

func TestRepositoryGetScopedToAccount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	insertEvent(t, repo, db, newEvent("ev-1", "acct-1"))

	_, err := repo.Get("acct-2", "ev-1")
	var notFound *domain.NotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "life_event", notFound.Entity)
}

func TestRepositoryListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	wedding := newEvent("ev-1", "acct-1")
	insertEvent(t, repo, db, wedding)

	college := newEvent("ev-2", "acct-1")
	college.EventType = TypeCollege
	college.Status = StatusArchived
	insertEvent(t, repo, db, college)

	all, err := repo.List("acct-1", ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	activeOnly, err := repo.List("acct-1", ListFilter{Status: StatusActive})
	require.NoError(t, err)
	require.Len(t, activeOnly, 1)
	assert.Equal(t, "ev-1", activeOnly[0].ID)

	collegeOnly, err := repo.List("acct-1", ListFilter{EventType: TypeCollege})
	require.NoError(t, err)
	require.Len(t, collegeOnly, 1)
	assert.Equal(t, "ev-2", collegeOnly[0].ID)
}

func TestRepositoryUpdateTx(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	ev := newEvent("ev-1", "acct-1")
	insertEvent(t, repo, db, ev)

	ev.Status = StatusArchived
	ev.UpdatedAt = "2026-08-31T09:00:00Z"

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.UpdateTx(tx, ev))
	require.NoError(t, tx.Commit())

	got, err := repo.Get("acct-1", "ev-1")
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, got.Status)
}

func TestRepositoryUpdateTxUnknownEvent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	tx, err := db.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	err = repo.UpdateTx(tx, newEvent("ghost", "acct-1"))
	var notFound *domain.NotFound
	require.ErrorAs(t, err, &notFound)
}
