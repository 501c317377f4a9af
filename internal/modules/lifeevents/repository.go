package lifeevents

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bluum-finance/autoinvest/internal/domain"
)

// Repository handles life event persistence in core.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new life event repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "life_events").Logger(),
	}
}

const eventColumns = `id, account_id, name, event_type, expected_date, estimated_cost,
	currency, recurring, linked_goal_id, notes, status, created_at, updated_at`

// Get retrieves a life event by id, scoped to the owning account.
func (r *Repository) Get(accountID, id string) (*LifeEvent, error) {
	row := r.db.QueryRow(
		`SELECT `+eventColumns+` FROM life_events WHERE id = ? AND account_id = ?`,
		id, accountID,
	)

	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFound{Entity: "life_event", ID: id}
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "get life event", Err: err}
	}
	return ev, nil
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Status    Status
	EventType EventType
}

// List retrieves an account's life events, optionally filtered by status and
// event type, newest first.
func (r *Repository) List(accountID string, filter ListFilter) ([]LifeEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM life_events WHERE account_id = ?`
	args := []interface{}{accountID}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.EventType != "" {
		query += " AND event_type = ?"
		args = append(args, string(filter.EventType))
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, &domain.StorageError{Op: "list life events", Err: err}
	}
	defer rows.Close()

	events := make([]LifeEvent, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			r.log.Error().Err(err).Msg("Failed to scan life event row")
			continue
		}
		events = append(events, *ev)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "list life events", Err: err}
	}

	return events, nil
}

// InsertTx writes a new life event inside the caller's transaction.
func (r *Repository) InsertTx(tx *sql.Tx, ev *LifeEvent) error {
	recurring := 0
	if ev.Recurring {
		recurring = 1
	}

	_, err := tx.Exec(`
		INSERT INTO life_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.AccountID, ev.Name, string(ev.EventType), ev.ExpectedDate,
		ev.EstimatedCost.String(), ev.Currency, recurring, nullable(ev.LinkedGoalID),
		nullable(ev.Notes), string(ev.Status), ev.CreatedAt, ev.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert life event %s: %w", ev.ID, err)
	}
	return nil
}

// UpdateTx rewrites a life event's mutable fields inside the caller's
// transaction.
func (r *Repository) UpdateTx(tx *sql.Tx, ev *LifeEvent) error {
	recurring := 0
	if ev.Recurring {
		recurring = 1
	}

	res, err := tx.Exec(`
		UPDATE life_events
		SET name = ?, event_type = ?, expected_date = ?, estimated_cost = ?,
		    currency = ?, recurring = ?, linked_goal_id = ?, notes = ?,
		    status = ?, updated_at = ?
		WHERE id = ? AND account_id = ?
	`, ev.Name, string(ev.EventType), ev.ExpectedDate, ev.EstimatedCost.String(),
		ev.Currency, recurring, nullable(ev.LinkedGoalID), nullable(ev.Notes),
		string(ev.Status), ev.UpdatedAt, ev.ID, ev.AccountID)
	if err != nil {
		return fmt.Errorf("failed to update life event %s: %w", ev.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected for life event %s: %w", ev.ID, err)
	}
	if affected == 0 {
		return &domain.NotFound{Entity: "life_event", ID: ev.ID}
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*LifeEvent, error) {
	var ev LifeEvent
	var eventType, status, cost string
	var recurring int
	var linkedGoalID, notes sql.NullString

	err := row.Scan(&ev.ID, &ev.AccountID, &ev.Name, &eventType, &ev.ExpectedDate,
		&cost, &ev.Currency, &recurring, &linkedGoalID, &notes, &status,
		&ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return nil, err
	}

	ev.EstimatedCost, err = decimal.NewFromString(cost)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored estimated cost %q: %w", cost, err)
	}
	ev.EventType = EventType(eventType)
	ev.Status = Status(status)
	ev.Recurring = recurring == 1
	if linkedGoalID.Valid {
		ev.LinkedGoalID = linkedGoalID.String
	}
	if notes.Valid {
		ev.Notes = notes.String
	}

	return &ev, nil
}
