package pki

import (
	"crypto"
	"fmt"
)

// KeyStore abstracts private-key operations so the authority's control logic
// is independent of how keys are generated and signed with. The default is a
// software store; the interface leaves room for HSM or KMS backends without
// touching the Authority.
//
// A keyID uniquely identifies a key managed by the store; its format is
// implementation-defined.
type KeyStore interface {
	// GenerateKey creates a new signing key and returns an opaque identifier.
	GenerateKey() (keyID string, err error)

	// Signer returns a [crypto.Signer] for the key identified by keyID,
	// as needed by x509.CreateCertificate.
	Signer(keyID string) (crypto.Signer, error)

	// ExportPEM returns the private key PEM-encoded in PKCS#8 form, for
	// persisting into the certificate store.
	ExportPEM(keyID string) (string, error)

	// ImportPEM loads a PEM-encoded private key into the store and returns
	// its key ID. Used when reading existing keys back from the store.
	ImportPEM(pemData string) (keyID string, err error)

	// Delete removes the key identified by keyID from the store.
	Delete(keyID string) error
}

// ErrKeyNotFound is returned when the referenced key ID does not exist.
var ErrKeyNotFound = fmt.Errorf("key not found")
