package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opaline/dbbridge/internal/db"
)

func newTestLogger(t *testing.T) (*SQLiteLogger, *db.DB) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	logger, err := NewSQLiteLogger(database.DB)
	require.NoError(t, err)
	return logger, database
}

func countEntries(t *testing.T, database *db.DB) int {
	t.Helper()
	var n int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM audit_log`).Scan(&n))
	return n
}

func TestLogSync(t *testing.T) {
	logger, database := newTestLogger(t)
	defer logger.Close()

	err := logger.Log(context.Background(), &Entry{
		Action:     "queryDatabase",
		SessionID:  "s1",
		Parameters: `{"query":"SELECT 1"}`,
		DurationMs: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countEntries(t, database))
}

func TestLogAsyncFlushedOnClose(t *testing.T) {
	logger, database := newTestLogger(t)

	for i := 0; i < 5; i++ {
		logger.LogAsync(&Entry{Action: "insertRecord", SessionID: "s2"})
	}
	require.NoError(t, logger.Close())
	assert.Equal(t, 5, countEntries(t, database))
}

func TestFillDefaults(t *testing.T) {
	logger, database := newTestLogger(t)
	defer logger.Close()

	e := &Entry{Action: "getRecords", Error: "no such table"}
	require.NoError(t, logger.Log(context.Background(), e))

	assert.NotEmpty(t, e.EntryID)
	assert.True(t, len(e.EntryID) > 4 && e.EntryID[:4] == "aud_")
	assert.NotZero(t, e.Timestamp)
	assert.Equal(t, "error", e.Status)

	var status string
	require.NoError(t, database.QueryRow(
		`SELECT status FROM audit_log WHERE entry_id = ?`, e.EntryID).Scan(&status))
	assert.Equal(t, "error", status)
}

func TestCloseIdempotent(t *testing.T) {
	logger, _ := newTestLogger(t)
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
}
