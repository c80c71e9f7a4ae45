package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgoodwin/muxgate/config"
)

func newStore(t *testing.T) (*config.Store, string) {
	t.Helper()
	root := t.TempDir()
	return config.NewStore(root), root
}

func TestRead_MissingFileYieldsDefaults(t *testing.T) {
	st, _ := newStore(t)
	assert.Equal(t, config.Defaults(), st.Read())
}

func TestRead_CorruptFieldsDegradeIndividually(t *testing.T) {
	st, root := newStore(t)
	content := `SERVICE="enable"
LISTEN_ADDRESS="not-an-ip"
LISTEN_PORT="8080"
LOG_LEVEL="shouting"
garbage line without equals
VERSION="nightly"
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "wezterm.cfg"), []byte(content), 0o644))

	s := st.Read()
	assert.True(t, s.Service)
	assert.Equal(t, "0.0.0.0", s.ListenAddress) // bad value, default kept
	assert.Equal(t, 8080, s.ListenPort)
	assert.Equal(t, "info", s.LogLevel) // bad value, default kept
	assert.Equal(t, "nightly", s.Version)
}

func TestSaveRoundTrip(t *testing.T) {
	st, root := newStore(t)

	want := config.Settings{
		Service:       true,
		ListenAddress: "0.0.0.0",
		ListenPort:    8080,
		LogLevel:      "info",
		Version:       "latest",
	}
	require.NoError(t, st.Save(t.Context(), want))
	assert.Equal(t, want, st.Read())

	// The stored file uses the quoted KEY="VALUE" format.
	data, err := os.ReadFile(filepath.Join(root, "wezterm.cfg"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `SERVICE="enable"`)
	assert.Contains(t, string(data), `LISTEN_PORT="8080"`)
}

func TestSave_RegeneratesDerivedConfig(t *testing.T) {
	st, _ := newStore(t)

	s := config.Defaults()
	s.ListenPort = 9922
	s.LogLevel = "debug"
	require.NoError(t, st.Save(t.Context(), s))

	lua, err := os.ReadFile(st.LuaPath())
	require.NoError(t, err)
	assert.Contains(t, string(lua), `bind_address = "0.0.0.0:9922"`)
	assert.Contains(t, string(lua), `config.log_level = "debug"`)
}

func TestSave_ValidationFailureWritesNothing(t *testing.T) {
	st, _ := newStore(t)

	good := config.Defaults()
	good.ListenPort = 7070
	require.NoError(t, st.Save(t.Context(), good))

	bad := good
	bad.ListenPort = 99999
	err := st.Save(t.Context(), bad)
	var verr *config.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "listen_port", verr.Field)

	// Previous settings survive untouched.
	assert.Equal(t, good, st.Read())
	lua, err := os.ReadFile(st.LuaPath())
	require.NoError(t, err)
	assert.Contains(t, string(lua), ":7070")
}

func TestEnsureDerived(t *testing.T) {
	st, _ := newStore(t)

	require.NoError(t, st.EnsureDerived(t.Context()))
	lua, err := os.ReadFile(st.LuaPath())
	require.NoError(t, err)
	assert.Contains(t, string(lua), `bind_address = "0.0.0.0:60021"`)

	// Present file is left alone.
	require.NoError(t, os.WriteFile(st.LuaPath(), []byte("-- hand-placed\n"), 0o644))
	require.NoError(t, st.EnsureDerived(t.Context()))
	lua, err = os.ReadFile(st.LuaPath())
	require.NoError(t, err)
	assert.Equal(t, "-- hand-placed\n", string(lua))
}
