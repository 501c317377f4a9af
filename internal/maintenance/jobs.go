package maintenance

import (
	"github.com/bluum-finance/autoinvest/internal/database"
	"github.com/bluum-finance/autoinvest/internal/modules/idempotency"
)

// LedgerPurgeJob deletes idempotency records past the retention window.
type LedgerPurgeJob struct {
	ledger *idempotency.Ledger
}

// NewLedgerPurgeJob creates the hourly ledger sweep.
func NewLedgerPurgeJob(ledger *idempotency.Ledger) *LedgerPurgeJob {
	return &LedgerPurgeJob{ledger: ledger}
}

// Name returns the job name
func (j *LedgerPurgeJob) Name() string { return "ledger_purge" }

// Run purges expired idempotency records.
func (j *LedgerPurgeJob) Run() error {
	_, err := j.ledger.Purge()
	return err
}

// WALCheckpointJob truncates the WAL file so it cannot grow unbounded on a
// long-running instance.
type WALCheckpointJob struct {
	db *database.DB
}

// NewWALCheckpointJob creates the daily checkpoint job.
func NewWALCheckpointJob(db *database.DB) *WALCheckpointJob {
	return &WALCheckpointJob{db: db}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string { return "wal_checkpoint" }

// Run forces a truncating WAL checkpoint.
func (j *WALCheckpointJob) Run() error {
	return j.db.WALCheckpoint("TRUNCATE")
}
