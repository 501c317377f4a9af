package accounts

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bluum-finance/autoinvest/internal/domain"
)

// Repository handles funding account persistence in core.db.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new funding account repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "funding_accounts").Logger(),
	}
}

const fundingColumns = `id, account_id, institution, account_number_mask, account_type,
	verification_status, created_at`

// Get retrieves a funding account by id, scoped to the owning account.
func (r *Repository) Get(accountID, id string) (*FundingAccount, error) {
	row := r.db.QueryRow(
		`SELECT `+fundingColumns+` FROM funding_accounts WHERE id = ? AND account_id = ?`,
		id, accountID,
	)

	var fa FundingAccount
	var status string
	err := row.Scan(&fa.ID, &fa.AccountID, &fa.Institution, &fa.AccountNumberMask,
		&fa.AccountType, &status, &fa.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFound{Entity: "funding_account", ID: id}
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "get funding account", Err: err}
	}
	fa.VerificationStatus = VerificationStatus(status)
	return &fa, nil
}

// List retrieves an account's funding accounts, newest first.
func (r *Repository) List(accountID string) ([]FundingAccount, error) {
	rows, err := r.db.Query(
		`SELECT `+fundingColumns+` FROM funding_accounts WHERE account_id = ? ORDER BY created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, &domain.StorageError{Op: "list funding accounts", Err: err}
	}
	defer rows.Close()

	result := make([]FundingAccount, 0)
	for rows.Next() {
		var fa FundingAccount
		var status string
		if err := rows.Scan(&fa.ID, &fa.AccountID, &fa.Institution, &fa.AccountNumberMask,
			&fa.AccountType, &status, &fa.CreatedAt); err != nil {
			r.log.Error().Err(err).Msg("Failed to scan funding account row")
			continue
		}
		fa.VerificationStatus = VerificationStatus(status)
		result = append(result, fa)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "list funding accounts", Err: err}
	}

	return result, nil
}

// InsertTx writes a new funding account inside the caller's transaction.
func (r *Repository) InsertTx(tx *sql.Tx, fa *FundingAccount) error {
	_, err := tx.Exec(`
		INSERT INTO funding_accounts (`+fundingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, fa.ID, fa.AccountID, fa.Institution, fa.AccountNumberMask, fa.AccountType,
		string(fa.VerificationStatus), fa.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert funding account %s: %w", fa.ID, err)
	}
	return nil
}
