package supervise_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgoodwin/muxgate/config"
	"github.com/rgoodwin/muxgate/supervise"
)

func newAutostartFixture(t *testing.T) (*supervise.Supervisor, string, *config.Store) {
	t.Helper()
	dir := t.TempDir()

	bin := filepath.Join(dir, "wezterm-mux-server")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

	bootScript := filepath.Join(dir, "rc.local")
	cfg := config.NewStore(dir)
	table := newFakeTable()
	sup := supervise.New(bin, filepath.Join(dir, "pid"), filepath.Join(dir, "wezterm.log"), bootScript, cfg,
		supervise.WithRunner(&fakeRunner{pid: 1, table: table}),
		supervise.WithProcessTable(table),
		supervise.WithTimings(100*time.Millisecond, 5*time.Millisecond, time.Millisecond, 10*time.Millisecond))
	return sup, bootScript, cfg
}

func managedLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var managed []string
	for _, l := range strings.Split(string(data), "\n") {
		if strings.HasSuffix(l, "# managed by muxgate") {
			managed = append(managed, l)
		}
	}
	return managed
}

func TestSetAutostart_Enable(t *testing.T) {
	sup, bootScript, cfg := newAutostartFixture(t)

	require.NoError(t, sup.SetAutostart(t.Context(), true))

	lines := managedLines(t, bootScript)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "wezterm-mux-server --config")
	assert.Contains(t, lines[0], ">> ")
	assert.True(t, cfg.Read().Service)

	fi, err := os.Stat(bootScript)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), fi.Mode().Perm())
}

func TestSetAutostart_EnableIsIdempotent(t *testing.T) {
	sup, bootScript, _ := newAutostartFixture(t)

	require.NoError(t, sup.SetAutostart(t.Context(), true))
	require.NoError(t, sup.SetAutostart(t.Context(), true))
	require.NoError(t, sup.SetAutostart(t.Context(), true))

	assert.Len(t, managedLines(t, bootScript), 1)
}

func TestSetAutostart_Disable(t *testing.T) {
	sup, bootScript, cfg := newAutostartFixture(t)

	require.NoError(t, sup.SetAutostart(t.Context(), true))
	require.NoError(t, sup.SetAutostart(t.Context(), false))

	assert.Empty(t, managedLines(t, bootScript))
	assert.False(t, cfg.Read().Service)

	// Disabling when never enabled stays a no-op.
	require.NoError(t, sup.SetAutostart(t.Context(), false))
	assert.Empty(t, managedLines(t, bootScript))
}

func TestSetAutostart_PreservesForeignContent(t *testing.T) {
	sup, bootScript, _ := newAutostartFixture(t)

	original := "#!/bin/sh\n# mount the data disk\nmount /dev/sda1 /data\n"
	require.NoError(t, os.WriteFile(bootScript, []byte(original), 0o755))

	require.NoError(t, sup.SetAutostart(t.Context(), true))
	require.NoError(t, sup.SetAutostart(t.Context(), false))

	data, err := os.ReadFile(bootScript)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestSetAutostart_DisableWithoutScript(t *testing.T) {
	sup, bootScript, _ := newAutostartFixture(t)

	require.NoError(t, sup.SetAutostart(t.Context(), false))

	// Nothing to remove, so no script springs into existence.
	_, err := os.Stat(bootScript)
	assert.True(t, os.IsNotExist(err))
}

func TestSetAutostart_CreatesMissingScript(t *testing.T) {
	sup, bootScript, _ := newAutostartFixture(t)

	require.NoError(t, sup.SetAutostart(t.Context(), true))

	data, err := os.ReadFile(bootScript)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "#!/bin/sh\n"))
}
