package schedules

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bluum-finance/autoinvest/internal/domain"
)

// Repository handles schedule persistence in core.db.
// Reads run on the shared connection; writes go through *Tx variants so the
// orchestrator can commit the entity write and the idempotency ledger write
// in one transaction.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new schedule repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "schedules").Logger(),
	}
}

const scheduleColumns = `id, account_id, portfolio_id, funding_source_id, amount, currency,
	frequency, timing_json, allocation_rule, status, start_date, created_at, updated_at`

// Get retrieves a schedule by id, scoped to the owning account.
func (r *Repository) Get(accountID, id string) (*Schedule, error) {
	row := r.db.QueryRow(
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = ? AND account_id = ?`,
		id, accountID,
	)

	s, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFound{Entity: "schedule", ID: id}
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "get schedule", Err: err}
	}
	return s, nil
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Status      Status
	PortfolioID string
}

// List retrieves an account's schedules, optionally filtered by status and
// portfolio, newest first.
func (r *Repository) List(accountID string, filter ListFilter) ([]Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE account_id = ?`
	args := []interface{}{accountID}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.PortfolioID != "" {
		query += " AND portfolio_id = ?"
		args = append(args, filter.PortfolioID)
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, &domain.StorageError{Op: "list schedules", Err: err}
	}
	defer rows.Close()

	schedules := make([]Schedule, 0)
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			r.log.Error().Err(err).Msg("Failed to scan schedule row")
			continue
		}
		schedules = append(schedules, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "list schedules", Err: err}
	}

	return schedules, nil
}

// InsertTx writes a new schedule inside the caller's transaction.
func (r *Repository) InsertTx(tx *sql.Tx, s *Schedule) error {
	timingJSON, err := json.Marshal(s.Timing)
	if err != nil {
		return fmt.Errorf("failed to marshal timing: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO schedules (`+scheduleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.AccountID, s.PortfolioID, s.FundingSourceID, s.Amount.String(), s.Currency,
		string(s.Frequency), string(timingJSON), s.AllocationRule, string(s.Status),
		s.StartDate, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert schedule %s: %w", s.ID, err)
	}
	return nil
}

// UpdateTx rewrites a schedule's mutable fields inside the caller's
// transaction.
func (r *Repository) UpdateTx(tx *sql.Tx, s *Schedule) error {
	timingJSON, err := json.Marshal(s.Timing)
	if err != nil {
		return fmt.Errorf("failed to marshal timing: %w", err)
	}

	res, err := tx.Exec(`
		UPDATE schedules
		SET amount = ?, currency = ?, frequency = ?, timing_json = ?,
		    allocation_rule = ?, status = ?, updated_at = ?
		WHERE id = ? AND account_id = ?
	`, s.Amount.String(), s.Currency, string(s.Frequency), string(timingJSON),
		s.AllocationRule, string(s.Status), s.UpdatedAt, s.ID, s.AccountID)
	if err != nil {
		return fmt.Errorf("failed to update schedule %s: %w", s.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for schedule %s: %w", s.ID, err)
	}
	if affected == 0 {
		return &domain.NotFound{Entity: "schedule", ID: s.ID}
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSchedule(row rowScanner) (*Schedule, error) {
	var s Schedule
	var amount, frequency, timingJSON, status string

	err := row.Scan(&s.ID, &s.AccountID, &s.PortfolioID, &s.FundingSourceID,
		&amount, &s.Currency, &frequency, &timingJSON, &s.AllocationRule,
		&status, &s.StartDate, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	s.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored amount %q: %w", amount, err)
	}
	s.Frequency = Frequency(frequency)
	s.Status = Status(status)

	if err := json.Unmarshal([]byte(timingJSON), &s.Timing); err != nil {
		return nil, fmt.Errorf("failed to parse stored timing %q: %w", timingJSON, err)
	}

	return &s, nil
}
