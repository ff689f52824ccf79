package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "thermal_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDBRunsMigrations(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)

	// Migrating again is a no-op.
	require.NoError(t, db.MigrateUp())
}

func TestMigrateDown(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.MigrateDown())
	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(0), version)

	require.NoError(t, db.MigrateUp())
}

func TestSessionLifecycle(t *testing.T) {
	db := newTestDB(t)

	n, err := db.SessionCount()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	id, err := db.StartSession("/dev/ttyUSB0", "mcu90640")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	n, err = db.SessionCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, db.EndSession(id))

	var endedAt any
	require.NoError(t, db.QueryRow(
		"SELECT ended_at FROM sessions WHERE session_id = ?", id).Scan(&endedAt))
	assert.NotNil(t, endedAt, "ended_at should be stamped")
}

func TestFrameStats(t *testing.T) {
	db := newTestDB(t)

	id, err := db.StartSession("mock", "mcu90640")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.RecordFrameStat(FrameStat{
			SessionID:         id,
			FrameID:           "frame-" + string(rune('a'+i)),
			MinKelvin:         280 + float64(i),
			MaxKelvin:         320 + float64(i),
			DisplayLowKelvin:  280,
			DisplayHighKelvin: 320,
			RealFPS:           7.9,
			ReportedFPS:       8,
		}))
	}

	stats, err := db.RecentFrameStats(id, 10)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	for _, fs := range stats {
		assert.Equal(t, id, fs.SessionID)
		assert.NotEmpty(t, fs.FrameID)
		assert.Less(t, fs.MinKelvin, fs.MaxKelvin)
		assert.False(t, fs.RecordedAt.IsZero())
	}

	// The limit caps the result set.
	stats, err = db.RecentFrameStats(id, 2)
	require.NoError(t, err)
	assert.Len(t, stats, 2)
}

func TestRecentFrameStatsScopedToSession(t *testing.T) {
	db := newTestDB(t)

	a, err := db.StartSession("mock", "mcu90640")
	require.NoError(t, err)
	b, err := db.StartSession("mock", "p2pro")
	require.NoError(t, err)

	require.NoError(t, db.RecordFrameStat(FrameStat{
		SessionID: a, FrameID: "fa", MinKelvin: 280, MaxKelvin: 320,
		DisplayLowKelvin: 280, DisplayHighKelvin: 320,
	}))

	stats, err := db.RecentFrameStats(b, 10)
	require.NoError(t, err)
	assert.Empty(t, stats, "session b should see no frame stats")
}
