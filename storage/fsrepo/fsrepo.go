// Package fsrepo implements storage.Repository on the filesystem, using the
// certificate store layout the installer and front-end depend on:
//
//	<certs-dir>/ca.key, ca.crt, server.key, server.crt
//	<certs-dir>/clients/<name>.key, <name>.crt
//	<certs-dir>/revoked/<name>-<serial>.key, <name>-<serial>.crt
//
// Mutating operations are serialized across processes with an advisory flock
// on <certs-dir>/.lock.
package fsrepo

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/rgoodwin/muxgate/storage"
)

const lockRetryInterval = 50 * time.Millisecond

// Repo is a filesystem-backed storage.Repository rooted at a certs directory.
type Repo struct {
	root string
	lock *flock.Flock
}

var _ storage.Repository = (*Repo)(nil)

// New creates the store layout under root (if absent) and returns the
// repository.
func New(root string) (*Repo, error) {
	for _, dir := range []string{root, filepath.Join(root, "clients"), filepath.Join(root, "revoked")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	return &Repo{
		root: root,
		lock: flock.New(filepath.Join(root, ".lock")),
	}, nil
}

func (r *Repo) dir(kind storage.Kind) string {
	switch kind {
	case storage.KindClient:
		return filepath.Join(r.root, "clients")
	case storage.KindRevoked:
		return filepath.Join(r.root, "revoked")
	default:
		return r.root
	}
}

func (r *Repo) path(kind storage.Kind, name string) string {
	return filepath.Join(r.dir(kind), name)
}

func (r *Repo) Put(kind storage.Kind, name string, data []byte, mode fs.FileMode) error {
	path := r.path(kind, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	// WriteFile mode is masked by umask; make the mode authoritative.
	if err := os.Chmod(tmp, mode); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("setting mode on %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

func (r *Repo) PutExclusive(kind storage.Kind, name string, data []byte, mode fs.FileMode) error {
	path := r.path(kind, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Chmod(tmp, mode); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("setting mode on %s: %w", name, err)
	}
	// Link publishes the finished file only if the name is still free; a
	// failure part-way through never leaves a partial record under name.
	if err := os.Link(tmp, path); err != nil {
		os.Remove(tmp)
		if os.IsExist(err) {
			return fmt.Errorf("%s/%s: %w", kind, name, storage.ErrExists)
		}
		return fmt.Errorf("creating %s: %w", name, err)
	}
	return os.Remove(tmp)
}

func (r *Repo) Get(kind storage.Kind, name string) ([]byte, error) {
	data, err := os.ReadFile(r.path(kind, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s/%s: %w", kind, name, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

func (r *Repo) List(kind storage.Kind) ([]string, error) {
	entries, err := os.ReadDir(r.dir(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", kind, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".key", ".crt":
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (r *Repo) Delete(kind storage.Kind, name string) error {
	err := os.Remove(r.path(kind, name))
	if os.IsNotExist(err) {
		return fmt.Errorf("%s/%s: %w", kind, name, storage.ErrNotFound)
	}
	return err
}

func (r *Repo) Rename(kind storage.Kind, name string, dstKind storage.Kind, dstName string) error {
	err := os.Rename(r.path(kind, name), r.path(dstKind, dstName))
	if os.IsNotExist(err) {
		return fmt.Errorf("%s/%s: %w", kind, name, storage.ErrNotFound)
	}
	return err
}

// Lock blocks until the store-wide advisory lock is held or ctx is done.
func (r *Repo) Lock(ctx context.Context) (func(), error) {
	ok, err := r.lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("acquiring store lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("acquiring store lock: %w", ctx.Err())
	}
	return func() { _ = r.lock.Unlock() }, nil
}
