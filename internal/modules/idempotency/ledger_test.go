package idempotency

import (
	"database/sql"
	"testing"
	"time"

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
		CREATE TABLE idempotency_records (
			idempotency_key TEXT PRIMARY KEY,
			signature TEXT NOT NULL,
			result BLOB NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	require.NoError(t, err)

	return db
}

func put(t *testing.T, ledger *Ledger, db *sql.DB, key, sig string, result []byte) bool {
	tx, err := db.Begin()
	require.NoError(t, err)
	inserted, err := ledger.PutTx(tx, key, sig, result)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return inserted
}

func TestLedgerPutAndGet(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedger(db, zerolog.Nop())

	inserted := put(t, ledger, db, "key-1", "sig-1", []byte("cached"))
	assert.True(t, inserted)

	rec, err := ledger.Get("key-1", "sig-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, []byte("cached"), rec.Result)
}

func TestLedgerGetUnknownKey(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedger(db, zerolog.Nop())

	rec, err := ledger.Get("missing", "sig-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestLedgerSignatureMismatchIsConflict(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedger(db, zerolog.Nop())

	put(t, ledger, db, "key-1", "sig-1", []byte("cached"))

	_, err := ledger.Get("key-1", "sig-other")
	var conflict *domain.IdempotencyConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "key-1", conflict.Key)
}

func TestLedgerCASSecondWriterLoses(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedger(db, zerolog.Nop())

	assert.True(t, put(t, ledger, db, "key-1", "sig-1", []byte("first")))
	assert.False(t, put(t, ledger, db, "key-1", "sig-1", []byte("second")))

	// The first committed result is the one that survives
	rec, err := ledger.Get("key-1", "sig-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, []byte("first"), rec.Result)
}

func TestLedgerExpiredRecordIsInvisible(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedger(db, zerolog.Nop())

	base := time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)
	ledger.SetClock(func() time.Time { return base })
	put(t, ledger, db, "key-1", "sig-1", []byte("cached"))

	// Just inside the window: still replayable
	ledger.SetClock(func() time.Time { return base.Add(RetentionWindow - time.Minute) })
	rec, err := ledger.Get("key-1", "sig-1")
	require.NoError(t, err)
	assert.NotNil(t, rec)

	// Past the window: treated as absent, even with a different signature
	ledger.SetClock(func() time.Time { return base.Add(RetentionWindow + time.Minute) })
	rec, err = ledger.Get("key-1", "sig-other")
	require.NoError(t, err)
	assert.Nil(t, rec)

	// The expired row was dropped on lookup
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM idempotency_records`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestLedgerPurgeRemovesOnlyExpiredRows(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedger(db, zerolog.Nop())

	base := time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)

	ledger.SetClock(func() time.Time { return base.Add(-RetentionWindow - time.Hour) })
	put(t, ledger, db, "old", "sig-1", []byte("stale"))

	ledger.SetClock(func() time.Time { return base })
	put(t, ledger, db, "fresh", "sig-1", []byte("live"))

	purged, err := ledger.Purge()
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	rec, err := ledger.Get("fresh", "sig-1")
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	type result struct {
		Status  string `msgpack:"status"`
		Payload []byte `msgpack:"payload"`
	}

	blob, err := Encode(result{Status: "created", Payload: []byte(`{"id":"x"}`)})
	require.NoError(t, err)

	var decoded result
	require.NoError(t, Decode(blob, &decoded))
	assert.Equal(t, "created", decoded.Status)
	assert.Equal(t, []byte(`{"id":"x"}`), decoded.Payload)
}
