// Package storage provides the repository abstraction over the certificate
// store. The on-disk layout under <config-root>/certs is a contract shared
// with the installer and front-end, so the filesystem implementation maps
// kinds directly onto that layout; an in-memory implementation exists for
// tests.
package storage

import (
	"context"
	"errors"
	"io/fs"
)

var (
	// ErrNotFound is returned when the referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrExists is returned by PutExclusive when the record already exists.
	ErrExists = errors.New("record already exists")
)

// Kind selects a section of the certificate store.
type Kind string

const (
	// KindRoot holds the CA and server identity material
	// (ca.key, ca.crt, server.key, server.crt).
	KindRoot Kind = "root"
	// KindClient holds active per-client key/cert pairs.
	KindClient Kind = "clients"
	// KindRevoked holds quarantined material of revoked clients.
	KindRevoked Kind = "revoked"
)

// Repository is the durable store for certificate material. Record names
// include their extension (e.g. "ca.key", "laptop.crt"); the mode passed to
// Put is authoritative (private keys 0600, certificates 0644).
type Repository interface {
	// Put writes a record, overwriting any existing one.
	Put(kind Kind, name string, data []byte, mode fs.FileMode) error

	// PutExclusive writes a record only if it does not already exist,
	// returning ErrExists otherwise.
	PutExclusive(kind Kind, name string, data []byte, mode fs.FileMode) error

	// Get reads a record, returning ErrNotFound if absent.
	Get(kind Kind, name string) ([]byte, error)

	// List returns the record names present under kind, in no particular
	// order.
	List(kind Kind) ([]string, error)

	// Delete removes a record, returning ErrNotFound if absent.
	Delete(kind Kind, name string) error

	// Rename moves a record between kinds, returning ErrNotFound if the
	// source is absent.
	Rename(kind Kind, name string, dstKind Kind, dstName string) error

	// Lock acquires the store-wide advisory lock for a mutating operation.
	// The returned release function must be called on every exit path.
	Lock(ctx context.Context) (release func(), err error)
}
