package policy

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bluum-finance/autoinvest/internal/domain"
)

// Repository handles the versioned policy store in core.db.
// Policies are append-only: each PUT writes a new (account_id, version) row
// and the current statement is the one with the highest version. Nothing is
// ever rewritten in place, so history is always recoverable.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new policy repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "policy").Logger(),
	}
}

const policyColumns = `account_id, version, risk_profile, time_horizon, objectives_json,
	target_equities, target_fixed_income, target_treasury, target_alternatives,
	max_drift_pct, created_at`

// Current retrieves the highest-version statement for an account.
func (r *Repository) Current(accountID string) (*Statement, error) {
	row := r.db.QueryRow(`
		SELECT `+policyColumns+` FROM policies
		WHERE account_id = ?
		ORDER BY version DESC LIMIT 1
	`, accountID)

	stmt, err := scanStatement(row)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFound{Entity: "policy", ID: accountID}
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "get current policy", Err: err}
	}
	return stmt, nil
}

// ByVersion retrieves a specific statement version for an account.
func (r *Repository) ByVersion(accountID string, version int) (*Statement, error) {
	row := r.db.QueryRow(`
		SELECT `+policyColumns+` FROM policies
		WHERE account_id = ? AND version = ?
	`, accountID, version)

	stmt, err := scanStatement(row)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFound{Entity: "policy", ID: fmt.Sprintf("%s@v%d", accountID, version)}
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "get policy version", Err: err}
	}
	return stmt, nil
}

// History retrieves all statement versions for an account, newest first.
func (r *Repository) History(accountID string) ([]Statement, error) {
	rows, err := r.db.Query(`
		SELECT `+policyColumns+` FROM policies
		WHERE account_id = ?
		ORDER BY version DESC
	`, accountID)
	if err != nil {
		return nil, &domain.StorageError{Op: "get policy history", Err: err}
	}
	defer rows.Close()

	statements := make([]Statement, 0)
	for rows.Next() {
		stmt, err := scanStatement(rows)
		if err != nil {
			r.log.Error().Err(err).Msg("Failed to scan policy row")
			continue
		}
		statements = append(statements, *stmt)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "get policy history", Err: err}
	}

	return statements, nil
}

// InsertTx appends a new statement version inside the caller's transaction.
// The version is assigned here (current max + 1) so concurrent PUTs cannot
// both claim the same version: the primary key rejects the loser.
func (r *Repository) InsertTx(tx *sql.Tx, stmt *Statement) error {
	var maxVersion sql.NullInt64
	err := tx.QueryRow(
		`SELECT MAX(version) FROM policies WHERE account_id = ?`, stmt.AccountID,
	).Scan(&maxVersion)
	if err != nil {
		return fmt.Errorf("failed to read current policy version: %w", err)
	}
	stmt.Version = int(maxVersion.Int64) + 1

	objectivesJSON, err := json.Marshal(stmt.Objectives)
	if err != nil {
		return fmt.Errorf("failed to marshal objectives: %w", err)
	}

	var maxDrift interface{}
	if stmt.Constraints.MaxDriftPct != nil {
		maxDrift = *stmt.Constraints.MaxDriftPct
	}

	_, err = tx.Exec(`
		INSERT INTO policies (`+policyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, stmt.AccountID, stmt.Version, stmt.RiskProfile, stmt.TimeHorizon, string(objectivesJSON),
		stmt.Target.Equities, stmt.Target.FixedIncome, stmt.Target.Treasury,
		stmt.Target.Alternatives, maxDrift, stmt.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert policy version %d for %s: %w", stmt.Version, stmt.AccountID, err)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStatement(row rowScanner) (*Statement, error) {
	var stmt Statement
	var objectivesJSON string
	var maxDrift sql.NullFloat64

	err := row.Scan(&stmt.AccountID, &stmt.Version, &stmt.RiskProfile, &stmt.TimeHorizon,
		&objectivesJSON, &stmt.Target.Equities, &stmt.Target.FixedIncome,
		&stmt.Target.Treasury, &stmt.Target.Alternatives, &maxDrift, &stmt.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(objectivesJSON), &stmt.Objectives); err != nil {
		return nil, fmt.Errorf("failed to parse stored objectives: %w", err)
	}
	if maxDrift.Valid {
		v := maxDrift.Float64
		stmt.Constraints.MaxDriftPct = &v
	}

	return &stmt, nil
}
