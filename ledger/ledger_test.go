package ledger_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgoodwin/muxgate/ledger"
)

// implementations runs every subtest against both ledger backends.
func implementations(t *testing.T, fn func(t *testing.T, l ledger.Ledger)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		fn(t, ledger.NewMemory())
	})
	t.Run("bolt", func(t *testing.T) {
		l, err := ledger.OpenBolt(filepath.Join(t.TempDir(), "index.db"))
		require.NoError(t, err)
		t.Cleanup(func() { l.Close() })
		fn(t, l)
	})
}

func TestNextSerial_Monotonic(t *testing.T) {
	implementations(t, func(t *testing.T, l ledger.Ledger) {
		for want := int64(1); want <= 5; want++ {
			serial, err := l.NextSerial()
			require.NoError(t, err)
			assert.Equal(t, want, serial)
		}
	})
}

func TestRecordAndLookup(t *testing.T) {
	implementations(t, func(t *testing.T, l ledger.Ledger) {
		revoked, err := l.IsRevoked("0a")
		require.NoError(t, err)
		assert.False(t, revoked)

		now := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, l.Record(ledger.Entry{Name: "laptop", Serial: "0a", RevokedAt: now}))
		require.NoError(t, l.Record(ledger.Entry{Name: "desktop", Serial: "0b", RevokedAt: now}))

		revoked, err = l.IsRevoked("0a")
		require.NoError(t, err)
		assert.True(t, revoked)
		revoked, err = l.IsRevoked("0c")
		require.NoError(t, err)
		assert.False(t, revoked)

		entries, err := l.Entries()
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "laptop", entries[0].Name)
		assert.Equal(t, "desktop", entries[1].Name)
		assert.Equal(t, now, entries[0].RevokedAt.UTC().Truncate(time.Second))
	})
}

func TestReset(t *testing.T) {
	implementations(t, func(t *testing.T, l ledger.Ledger) {
		_, err := l.NextSerial()
		require.NoError(t, err)
		_, err = l.NextSerial()
		require.NoError(t, err)
		require.NoError(t, l.Record(ledger.Entry{Name: "laptop", Serial: "01"}))

		require.NoError(t, l.Reset())

		serial, err := l.NextSerial()
		require.NoError(t, err)
		assert.Equal(t, int64(1), serial)

		entries, err := l.Entries()
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestBolt_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	l, err := ledger.OpenBolt(path)
	require.NoError(t, err)
	_, err = l.NextSerial()
	require.NoError(t, err)
	_, err = l.NextSerial()
	require.NoError(t, err)
	require.NoError(t, l.Record(ledger.Entry{Name: "laptop", Serial: "01"}))
	require.NoError(t, l.Close())

	l, err = ledger.OpenBolt(path)
	require.NoError(t, err)
	defer l.Close()

	serial, err := l.NextSerial()
	require.NoError(t, err)
	assert.Equal(t, int64(3), serial)

	revoked, err := l.IsRevoked("01")
	require.NoError(t, err)
	assert.True(t, revoked)
}
