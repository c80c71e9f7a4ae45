package bundle_test

import (
	"archive/zip"
	"bytes"
	"io"
	"net"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgoodwin/muxgate/bundle"
	"github.com/rgoodwin/muxgate/config"
	"github.com/rgoodwin/muxgate/ledger"
	"github.com/rgoodwin/muxgate/pki"
	"github.com/rgoodwin/muxgate/storage"
	"github.com/rgoodwin/muxgate/storage/memory"
)

func newPackager(t *testing.T) (*bundle.Packager, *pki.Authority, *memory.Repo, *config.Store) {
	t.Helper()
	repo := memory.New()
	cfg := config.NewStore(t.TempDir())
	a := pki.New(repo, ledger.NewMemory(),
		pki.WithKeyStore(pki.NewSoftwareKeyStore(pki.WithKeyBits(1024))))
	return bundle.New(repo, cfg), a, repo, cfg
}

func issueClient(t *testing.T, a *pki.Authority, name string) {
	t.Helper()
	host := pki.HostInfo{Hostname: "muxhost", PrimaryIP: net.IPv4(192, 0, 2, 10)}
	require.NoError(t, a.InitCA(t.Context(), host))
	_, err := a.IssueClientCertificate(t.Context(), name)
	require.NoError(t, err)
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	entries := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		entries[f.Name] = content
	}
	return entries
}

func TestBuild(t *testing.T) {
	p, a, repo, _ := newPackager(t)
	issueClient(t, a, "laptop")

	var buf bytes.Buffer
	require.NoError(t, p.Build("laptop", &buf))

	entries := readArchive(t, buf.Bytes())
	require.Len(t, entries, 4)
	for _, name := range []string{"ca.crt", "client.crt", "client.key", "wezterm-client.lua"} {
		assert.Contains(t, entries, name)
	}

	caCert, err := repo.Get(storage.KindRoot, "ca.crt")
	require.NoError(t, err)
	assert.Equal(t, caCert, entries["ca.crt"])
	assert.Contains(t, string(entries["client.key"]), "BEGIN PRIVATE KEY")

	// The CA private key must never leave the host inside a bundle.
	caKey, err := repo.Get(storage.KindRoot, "ca.key")
	require.NoError(t, err)
	for name, content := range entries {
		assert.NotContains(t, string(content), strings.TrimSpace(string(caKey)), name)
	}
	assert.NotEqual(t, entries["client.key"], caKey)
}

func TestBuild_SnippetAddress(t *testing.T) {
	p, a, _, cfg := newPackager(t)
	issueClient(t, a, "laptop")

	// Wildcard bind leaves a placeholder for the user to fill in.
	var buf bytes.Buffer
	require.NoError(t, p.Build("laptop", &buf))
	snippet := string(readArchive(t, buf.Bytes())["wezterm-client.lua"])
	assert.Contains(t, snippet, `remote_address = "HOST_ADDRESS:60021"`)

	// A concrete bind address shows up verbatim.
	s := config.Defaults()
	s.ListenAddress = "192.0.2.10"
	s.ListenPort = 8080
	require.NoError(t, cfg.Save(t.Context(), s))

	buf.Reset()
	require.NoError(t, p.Build("laptop", &buf))
	snippet = string(readArchive(t, buf.Bytes())["wezterm-client.lua"])
	assert.Contains(t, snippet, `remote_address = "192.0.2.10:8080"`)
}

func TestBuild_UnknownClient(t *testing.T) {
	p, a, _, _ := newPackager(t)
	issueClient(t, a, "laptop")

	var buf bytes.Buffer
	assert.ErrorIs(t, p.Build("ghost", &buf), pki.ErrNotFound)
}

func TestBuild_NotInitialized(t *testing.T) {
	repo := memory.New()
	p := bundle.New(repo, config.NewStore(t.TempDir()))

	// Client material present but no CA: store was tampered with.
	require.NoError(t, repo.Put(storage.KindClient, "laptop.crt", []byte("c"), 0o644))
	require.NoError(t, repo.Put(storage.KindClient, "laptop.key", []byte("k"), 0o600))

	var buf bytes.Buffer
	assert.ErrorIs(t, p.Build("laptop", &buf), pki.ErrNotInitialized)
}

func TestBuildFile(t *testing.T) {
	p, a, _, _ := newPackager(t)
	issueClient(t, a, "laptop")

	path, err := p.BuildFile("laptop")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(path) })

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, readArchive(t, data), 4)
}

func TestBuildFile_FailureLeavesNoFile(t *testing.T) {
	p, _, _, _ := newPackager(t)

	_, err := p.BuildFile("ghost")
	assert.ErrorIs(t, err, pki.ErrNotFound)
}
