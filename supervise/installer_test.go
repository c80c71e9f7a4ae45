package supervise_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgoodwin/muxgate/supervise"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "installer.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestInstall(t *testing.T) {
	inst := &supervise.Installer{Path: writeScript(t, `echo "installing $1"`)}

	out, err := inst.Install(t.Context(), "20240203-110809-5046fc22")
	require.NoError(t, err)
	assert.Equal(t, "installing 20240203-110809-5046fc22", out)
}

func TestInstall_FailureCarriesOutput(t *testing.T) {
	inst := &supervise.Installer{Path: writeScript(t, "echo \"no such release: $1\"\nexit 3")}

	out, err := inst.Install(t.Context(), "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such release: bogus")
	assert.Contains(t, out, "no such release")
}

func TestInstall_NotConfigured(t *testing.T) {
	inst := &supervise.Installer{}
	_, err := inst.Install(t.Context(), "latest")
	assert.ErrorIs(t, err, supervise.ErrBinaryMissing)
}

func TestInstall_MissingExecutable(t *testing.T) {
	inst := &supervise.Installer{Path: filepath.Join(t.TempDir(), "nope.sh")}
	_, err := inst.Install(t.Context(), "latest")
	assert.ErrorIs(t, err, supervise.ErrBinaryMissing)
}
