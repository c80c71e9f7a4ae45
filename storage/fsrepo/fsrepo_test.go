package fsrepo_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rgoodwin/muxgate/storage"
	"github.com/rgoodwin/muxgate/storage/fsrepo"
)

func newRepo(t *testing.T) (*fsrepo.Repo, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "certs")
	r, err := fsrepo.New(root)
	require.NoError(t, err)
	return r, root
}

func TestNew_CreatesLayout(t *testing.T) {
	_, root := newRepo(t)
	for _, dir := range []string{root, filepath.Join(root, "clients"), filepath.Join(root, "revoked")} {
		fi, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, fi.IsDir())
	}
}

func TestPutGet(t *testing.T) {
	r, root := newRepo(t)

	require.NoError(t, r.Put(storage.KindRoot, "ca.key", []byte("secret"), 0o600))
	data, err := r.Get(storage.KindRoot, "ca.key")
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), data)

	fi, err := os.Stat(filepath.Join(root, "ca.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	// Put replaces atomically; no .tmp remnant survives.
	require.NoError(t, r.Put(storage.KindRoot, "ca.key", []byte("rotated"), 0o600))
	data, err = r.Get(storage.KindRoot, "ca.key")
	require.NoError(t, err)
	assert.Equal(t, []byte("rotated"), data)
	_, err = os.Stat(filepath.Join(root, "ca.key.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestPutExclusive(t *testing.T) {
	r, root := newRepo(t)

	require.NoError(t, r.PutExclusive(storage.KindRoot, "ca.key", []byte("one"), 0o600))
	fi, err := os.Stat(filepath.Join(root, "ca.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	err = r.PutExclusive(storage.KindRoot, "ca.key", []byte("two"), 0o600)
	assert.ErrorIs(t, err, storage.ErrExists)

	// The refused write leaves the existing record intact and no staging
	// remnant behind.
	data, err := r.Get(storage.KindRoot, "ca.key")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), data)
	_, err = os.Stat(filepath.Join(root, "ca.key.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestGet_NotFound(t *testing.T) {
	r, _ := newRepo(t)
	_, err := r.Get(storage.KindClient, "ghost.crt")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestList_FiltersCertificateMaterial(t *testing.T) {
	r, root := newRepo(t)

	require.NoError(t, r.Put(storage.KindClient, "laptop.crt", []byte("c"), 0o644))
	require.NoError(t, r.Put(storage.KindClient, "laptop.key", []byte("k"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "clients", "notes.txt"), []byte("x"), 0o644))

	names, err := r.List(storage.KindClient)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"laptop.crt", "laptop.key"}, names)
}

func TestDelete(t *testing.T) {
	r, _ := newRepo(t)

	require.NoError(t, r.Put(storage.KindClient, "laptop.crt", []byte("c"), 0o644))
	require.NoError(t, r.Delete(storage.KindClient, "laptop.crt"))
	_, err := r.Get(storage.KindClient, "laptop.crt")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, r.Delete(storage.KindClient, "laptop.crt"), storage.ErrNotFound)
}

func TestRename_AcrossKinds(t *testing.T) {
	r, _ := newRepo(t)

	require.NoError(t, r.Put(storage.KindClient, "laptop.crt", []byte("c"), 0o644))
	require.NoError(t, r.Rename(storage.KindClient, "laptop.crt", storage.KindRevoked, "laptop-0a.crt"))

	_, err := r.Get(storage.KindClient, "laptop.crt")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	data, err := r.Get(storage.KindRevoked, "laptop-0a.crt")
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), data)

	assert.ErrorIs(t,
		r.Rename(storage.KindClient, "ghost.crt", storage.KindRevoked, "ghost-01.crt"),
		storage.ErrNotFound)
}

func TestLock(t *testing.T) {
	r, _ := newRepo(t)

	release, err := r.Lock(t.Context())
	require.NoError(t, err)
	release()

	// Reacquirable after release.
	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	release, err = r.Lock(ctx)
	require.NoError(t, err)
	release()
}
