package knowledge

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kolibri-v0/internal/ledger"
)

var testKey = []byte("kolibri-secret-key")

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "index.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestIndexLedger(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genome.dat")

	led, err := ledger.Open(path, testKey)
	require.NoError(t, err)
	_, err = led.Append("BOOT", "node 1")
	require.NoError(t, err)
	_, err = led.Append("TEACH", "2 -> 4")
	require.NoError(t, err)
	_, err = led.Append("ASK", "f(2)")
	require.NoError(t, err)
	require.NoError(t, led.Close())

	db := openTestDB(t)
	n, err := db.IndexLedger(path, testKey)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	events, err := db.RecentEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "ASK", events[0].Name)
	assert.Equal(t, "f(2)", events[0].Payload)
	assert.Equal(t, "BOOT", events[2].Name)

	counts, err := db.EventCounts()
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["TEACH"])

	// idempotent
	n, err = db.IndexLedger(path, testKey)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	events, err = db.RecentEvents(10)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestIndexMissingLedger(t *testing.T) {
	db := openTestDB(t)
	n, err := db.IndexLedger(filepath.Join(t.TempDir(), "absent.dat"), testKey)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAssociations(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.RecordAssociation("столица франции", "париж", "user"))
	require.NoError(t, db.RecordAssociation("столица франции", "Париж", "user"))
	require.NoError(t, db.RecordAssociation("capital of italy", "rome", "peer"))

	found, err := db.SearchAssociations("франции", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Париж", found["столица франции"])

	all, err := db.SearchAssociations("", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
