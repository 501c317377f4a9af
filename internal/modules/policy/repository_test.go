package policy

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
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
		CREATE TABLE policies (
			account_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			risk_profile TEXT NOT NULL,
			time_horizon TEXT NOT NULL,
			objectives_json TEXT NOT NULL,
			target_equities REAL NOT NULL DEFAULT 0,
			target_fixed_income REAL NOT NULL DEFAULT 0,
			target_treasury REAL NOT NULL DEFAULT 0,
			target_alternatives REAL NOT NULL DEFAULT 0,
			max_drift_pct REAL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (account_id, version)
		)
	`)
	require.NoError(t, err)

	return db
}

func insertStatement(t *testing.T, repo *Repository, db *sql.DB, stmt *Statement) {
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.InsertTx(tx, stmt))
	require.NoError(t, tx.Commit())
}

func newStatement(accountID, riskProfile string) *Statement {
	return &Statement{
		AccountID:   accountID,
		RiskProfile: riskProfile,
		TimeHorizon: "10y",
		Objectives:  []string{"growth", "income"},
		Target:      TargetAllocation{Equities: 60, FixedIncome: 20, Treasury: 10, Alternatives: 10},
		CreatedAt:   "2026-08-30T10:00:00Z",
	}
}

func TestRepositoryVersionsAreAppendOnly(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	first := newStatement("acct-1", "moderate")
	insertStatement(t, repo, db, first)
	assert.Equal(t, 1, first.Version)

	second := newStatement("acct-1", "aggressive")
	second.Target = TargetAllocation{Equities: 80, FixedIncome: 10, Treasury: 5, Alternatives: 5}
	insertStatement(t, repo, db, second)
	assert.Equal(t, 2, second.Version)

	current, err := repo.Current("acct-1")
	require.NoError(t, err)
	assert.Equal(t, 2, current.Version)
	assert.Equal(t, "aggressive", current.RiskProfile)

	// The first version stays recoverable
	v1, err := repo.ByVersion("acct-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "moderate", v1.RiskProfile)
	assert.Equal(t, 60.0, v1.Target.Equities)
}

func TestRepositoryHistoryNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	insertStatement(t, repo, db, newStatement("acct-1", "conservative"))
	insertStatement(t, repo, db, newStatement("acct-1", "moderate"))
	insertStatement(t, repo, db, newStatement("acct-1", "aggressive"))

	history, err := repo.History("acct-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 3, history[0].Version)
	assert.Equal(t, 1, history[2].Version)
}

func TestRepositoryVersionsScopedPerAccount(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	a := newStatement("acct-1", "moderate")
	insertStatement(t, repo, db, a)
	b := newStatement("acct-2", "moderate")
	insertStatement(t, repo, db, b)

	assert.Equal(t, 1, a.Version)
	assert.Equal(t, 1, b.Version)
}

func TestRepositoryConstraintsRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	withDrift := newStatement("acct-1", "moderate")
	withDrift.Constraints.MaxDriftPct = floatPtr(3.5)
	insertStatement(t, repo, db, withDrift)

	got, err := repo.Current("acct-1")
	require.NoError(t, err)
	require.NotNil(t, got.Constraints.MaxDriftPct)
	assert.Equal(t, 3.5, *got.Constraints.MaxDriftPct)
	assert.Equal(t, []string{"growth", "income"}, got.Objectives)

	without := newStatement("acct-2", "moderate")
	insertStatement(t, repo, db, without)

	got, err = repo.Current("acct-2")
	require.NoError(t, err)
	assert.Nil(t, got.Constraints.MaxDriftPct)
}

func TestRepositoryNoPolicy(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, zerolog.Nop())

	_, err := repo.Current("acct-1")
	var notFound *domain.NotFound
	require.ErrorAs(t, err, &notFound)

	_, err = repo.ByVersion("acct-1", 7)
	require.ErrorAs(t, err, &notFound)

	history, err := repo.History("acct-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}
