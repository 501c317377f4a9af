// Package idempotency implements the idempotency ledger: at most one side
// effect per caller-supplied key, with the first committed result replayed
// verbatim to every retry.
package idempotency

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bluum-finance/autoinvest/internal/domain"
)

// RetentionWindow bounds how long a committed record shadows its key.
// After expiry a replayed key is treated as a fresh command.
const RetentionWindow = 24 * time.Hour

// Record is one committed ledger entry. Result holds the msgpack-encoded
// command result exactly as first produced.
type Record struct {
	Key       string
	Signature string
	Result    []byte
	CreatedAt time.Time
}

// Ledger reads and writes idempotency records. The write path belongs to the
// orchestrator's commit transaction exclusively; no record exists for a
// command that did not commit, so a retry after a downstream failure runs
// fresh.
type Ledger struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewLedger creates a new idempotency ledger over core.db.
func NewLedger(db *sql.DB, log zerolog.Logger) *Ledger {
	return &Ledger{
		db:  db,
		log: log.With().Str("component", "idempotency_ledger").Logger(),
		now: time.Now,
	}
}

// SetClock overrides the time source. Used by tests to exercise expiry.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Get looks up a live record for key. Returns the record when the stored
// signature matches, nil when no live record exists, and IdempotencyConflict
// when the key was committed under a different signature. Expired records
// are treated as absent and dropped.
func (l *Ledger) Get(key, signature string) (*Record, error) {
	var rec Record
	var createdAt int64
	err := l.db.QueryRow(`
		SELECT idempotency_key, signature, result, created_at
		FROM idempotency_records WHERE idempotency_key = ?
	`, key).Scan(&rec.Key, &rec.Signature, &rec.Result, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "idempotency lookup", Err: err}
	}

	rec.CreatedAt = time.Unix(createdAt, 0)
	if l.now().Sub(rec.CreatedAt) > RetentionWindow {
		if _, err := l.db.Exec(
			`DELETE FROM idempotency_records WHERE idempotency_key = ?`, key,
		); err != nil {
			l.log.Warn().Err(err).Str("key", key).Msg("Failed to drop expired idempotency record")
		}
		return nil, nil
	}

	if rec.Signature != signature {
		return nil, &domain.IdempotencyConflict{Key: key}
	}

	return &rec, nil
}

// PutTx records a committed result inside the caller's transaction, using
// INSERT ... ON CONFLICT DO NOTHING as the single-writer-wins primitive.
// Returns false when another execution committed the key first; the caller
// must roll back its own writes and replay the winner's result.
func (l *Ledger) PutTx(tx *sql.Tx, key, signature string, result []byte) (bool, error) {
	res, err := tx.Exec(`
		INSERT INTO idempotency_records (idempotency_key, signature, result, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(idempotency_key) DO NOTHING
	`, key, signature, result, l.now().Unix())
	if err != nil {
		return false, fmt.Errorf("failed to write idempotency record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected for idempotency record: %w", err)
	}
	return affected == 1, nil
}

// Purge deletes records older than the retention window. Run by the
// maintenance cron.
func (l *Ledger) Purge() (int64, error) {
	cutoff := l.now().Add(-RetentionWindow).Unix()
	res, err := l.db.Exec(
		`DELETE FROM idempotency_records WHERE created_at < ?`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge idempotency records: %w", err)
	}

	purged, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purge count: %w", err)
	}
	if purged > 0 {
		l.log.Info().Int64("purged", purged).Msg("Purged expired idempotency records")
	}
	return purged, nil
}

// Encode serializes a command result for ledger storage.
func Encode(v interface{}) ([]byte, error) {
	blob, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cached result: %w", err)
	}
	return blob, nil
}

// Decode deserializes a cached command result.
func Decode(blob []byte, v interface{}) error {
	if err := msgpack.Unmarshal(blob, v); err != nil {
		return fmt.Errorf("failed to decode cached result: %w", err)
	}
	return nil
}
