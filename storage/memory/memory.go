// Package memory provides a thread-safe in-memory implementation of
// storage.Repository. Suitable for tests and demos; it records the mode each
// record was written with so permission behavior stays assertable.
package memory

import (
	"context"
	"fmt"
	"io/fs"
	"sync"

	"github.com/rgoodwin/muxgate/storage"
)

// Record is a stored value plus the mode it was written with.
type Record struct {
	Data []byte
	Mode fs.FileMode
}

// Repo is a thread-safe in-memory implementation of storage.Repository.
type Repo struct {
	mu   sync.Mutex
	data map[storage.Kind]map[string]Record
}

var _ storage.Repository = (*Repo)(nil)

// New returns an empty in-memory repository.
func New() *Repo {
	return &Repo{data: make(map[storage.Kind]map[string]Record)}
}

func (r *Repo) putLocked(kind storage.Kind, name string, data []byte, mode fs.FileMode) {
	if _, ok := r.data[kind]; !ok {
		r.data[kind] = make(map[string]Record)
	}
	r.data[kind][name] = Record{Data: append([]byte(nil), data...), Mode: mode}
}

func (r *Repo) Put(kind storage.Kind, name string, data []byte, mode fs.FileMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(kind, name, data, mode)
	return nil
}

func (r *Repo) PutExclusive(kind storage.Kind, name string, data []byte, mode fs.FileMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[kind][name]; ok {
		return fmt.Errorf("%s/%s: %w", kind, name, storage.ErrExists)
	}
	r.putLocked(kind, name, data, mode)
	return nil
}

func (r *Repo) Get(kind storage.Kind, name string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.data[kind][name]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", kind, name, storage.ErrNotFound)
	}
	return append([]byte(nil), rec.Data...), nil
}

func (r *Repo) List(kind storage.Kind) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for name := range r.data[kind] {
		names = append(names, name)
	}
	return names, nil
}

func (r *Repo) Delete(kind storage.Kind, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[kind][name]; !ok {
		return fmt.Errorf("%s/%s: %w", kind, name, storage.ErrNotFound)
	}
	delete(r.data[kind], name)
	return nil
}

func (r *Repo) Rename(kind storage.Kind, name string, dstKind storage.Kind, dstName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.data[kind][name]
	if !ok {
		return fmt.Errorf("%s/%s: %w", kind, name, storage.ErrNotFound)
	}
	delete(r.data[kind], name)
	if _, ok := r.data[dstKind]; !ok {
		r.data[dstKind] = make(map[string]Record)
	}
	r.data[dstKind][dstName] = rec
	return nil
}

// Lock satisfies the interface; the in-memory store is already serialized by
// its mutex, so the advisory lock is a no-op.
func (r *Repo) Lock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return func() {}, nil
}

// Mode returns the mode a record was written with, for permission assertions
// in tests.
func (r *Repo) Mode(kind storage.Kind, name string) (fs.FileMode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.data[kind][name]
	return rec.Mode, ok
}
