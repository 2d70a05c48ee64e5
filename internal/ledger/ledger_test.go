package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("kolibri-secret-key")

func openTemp(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genome.dat")
	l, err := Open(path, testKey)
	require.NoError(t, err)
	return l, path
}

func TestLedgerLifecycle(t *testing.T) {
	l, path := openTemp(t)

	r0, err := l.Append("TEACH", "2->4")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), r0.Index)
	assert.Equal(t, [HashSize]byte{}, r0.PrevHash)

	r1, err := l.Append("ASK", "f(2)")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r1.Index)
	assert.Equal(t, r0.HMAC, r1.PrevHash)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close()) // idempotent

	st, err := Verify(path, testKey)
	require.NoError(t, err)
	assert.Equal(t, StatusOk, st)

	// Reopen, append a third record, replay all three in order.
	l2, err := Open(path, testKey)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), l2.NextIndex())
	_, err = l2.Append("EVOLVE", "tick")
	require.NoError(t, err)
	require.NoError(t, l2.Close())

	var indices []uint64
	var events []string
	st, err = Replay(path, testKey, func(r Record) error {
		indices = append(indices, r.Index)
		ev, err := r.Event()
		require.NoError(t, err)
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusOk, st)
	assert.Equal(t, []uint64{0, 1, 2}, indices)
	assert.Equal(t, []string{"TEACH", "ASK", "EVOLVE"}, events)
}

func TestPayloadRoundTrip(t *testing.T) {
	l, path := openTemp(t)
	_, err := l.Append("TEACH_TEXT", "что такое колибри? -> птица")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	var payload string
	_, err = Replay(path, testKey, func(r Record) error {
		p, err := r.Payload()
		require.NoError(t, err)
		payload = p
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "что такое колибри? -> птица", payload)
}

func TestVerifyMissingFile(t *testing.T) {
	st, err := Verify(filepath.Join(t.TempDir(), "nope.dat"), testKey)
	require.NoError(t, err)
	assert.Equal(t, StatusMissing, st)
}

func TestTamperDetection(t *testing.T) {
	l, path := openTemp(t)
	for i := 0; i < 4; i++ {
		_, err := l.Append("TEACH", "payload")
		require.NoError(t, err)
	}
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// Flip one digit character inside the third record's payload field.
	lines := 0
	pos := -1
	for i, b := range data {
		if b == '\n' {
			lines++
			if lines == 2 {
				pos = i + 1
			}
		}
	}
	require.GreaterOrEqual(t, pos, 0)
	// last digit before the trailing newline of line 3
	end := pos
	for data[end] != '\n' {
		end++
	}
	if data[end-1] == '9' {
		data[end-1] = '0'
	} else {
		data[end-1]++
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Verify(path, testKey)
	var ce *CorruptError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 3, ce.Line)

	// Replay visits only the records before the tamper point.
	var visited []uint64
	_, err = Replay(path, testKey, func(r Record) error {
		visited = append(visited, r.Index)
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, []uint64{0, 1}, visited)

	// Open must refuse the whole file.
	_, err = Open(path, testKey)
	require.ErrorAs(t, err, &ce)
}

func TestWrongKeyFailsFirstRecord(t *testing.T) {
	l, path := openTemp(t)
	_, err := l.Append("BOOT", "hello")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = Verify(path, []byte("another-key"))
	var ce *CorruptError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.Line)
}

func TestAppendFieldLimits(t *testing.T) {
	l, _ := openTemp(t)
	defer l.Close()

	long := make([]byte, MaxPayloadLen+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err := l.Append("TEACH", string(long))
	assert.ErrorIs(t, err, ErrFieldTooBig)

	_, err = l.Append("", "payload")
	assert.ErrorIs(t, err, ErrFieldTooBig)

	// limits did not corrupt in-memory state
	rec, err := l.Append("TEACH", "ok")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), rec.Index)
}

func TestAppendAfterClose(t *testing.T) {
	l, _ := openTemp(t)
	require.NoError(t, l.Close())
	_, err := l.Append("TEACH", "x")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBadKeyRejected(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "g.dat"), nil)
	assert.ErrorIs(t, err, ErrBadKey)
}
