package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
)

// DefaultKeyBits is the RSA modulus size for production keys.
const DefaultKeyBits = 4096

// SoftwareKeyStore generates RSA keys and holds their PKCS#8 DER encoding in
// memguard enclaves, so key material is encrypted at rest in process memory
// between operations. Keys are ephemeral; the authority persists them in the
// certificate store via ExportPEM/ImportPEM.
type SoftwareKeyStore struct {
	mu   sync.Mutex
	keys map[string]*memguard.Enclave
	bits int
	seq  int
}

var _ KeyStore = (*SoftwareKeyStore)(nil)

// SoftwareOption configures a SoftwareKeyStore.
type SoftwareOption func(*SoftwareKeyStore)

// WithKeyBits overrides the RSA modulus size. Tests use smaller keys to keep
// issuance fast; production uses the 4096-bit default.
func WithKeyBits(bits int) SoftwareOption {
	return func(s *SoftwareKeyStore) {
		s.bits = bits
	}
}

// NewSoftwareKeyStore returns a SoftwareKeyStore ready for use.
func NewSoftwareKeyStore(opts ...SoftwareOption) *SoftwareKeyStore {
	s := &SoftwareKeyStore{
		keys: make(map[string]*memguard.Enclave),
		bits: DefaultKeyBits,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SoftwareKeyStore) nextID() string {
	s.seq++
	return fmt.Sprintf("sw-%d", s.seq)
}

// GenerateKey creates a new RSA key pair and seals it in an enclave.
func (s *SoftwareKeyStore) GenerateKey() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	priv, err := rsa.GenerateKey(rand.Reader, s.bits)
	if err != nil {
		return "", fmt.Errorf("generating RSA-%d key: %w", s.bits, err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", fmt.Errorf("encoding private key: %w", err)
	}
	id := s.nextID()
	// NewEnclave wipes der after sealing.
	s.keys[id] = memguard.NewEnclave(der)
	return id, nil
}

func (s *SoftwareKeyStore) open(keyID string) (*memguard.LockedBuffer, error) {
	s.mu.Lock()
	enclave, ok := s.keys[keyID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
	}
	buf, err := enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("opening key enclave: %w", err)
	}
	return buf, nil
}

// Signer decodes the sealed key and returns it as a crypto.Signer.
func (s *SoftwareKeyStore) Signer(keyID string) (crypto.Signer, error) {
	buf, err := s.open(keyID)
	if err != nil {
		return nil, err
	}
	defer buf.Destroy()

	key, err := x509.ParsePKCS8PrivateKey(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("key %s does not implement crypto.Signer", keyID)
	}
	return signer, nil
}

// ExportPEM encodes the private key as a PKCS#8 "PRIVATE KEY" PEM block.
func (s *SoftwareKeyStore) ExportPEM(keyID string) (string, error) {
	buf, err := s.open(keyID)
	if err != nil {
		return "", err
	}
	defer buf.Destroy()
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: buf.Bytes()})), nil
}

// ImportPEM parses a PKCS#8 private key PEM block and seals it.
func (s *SoftwareKeyStore) ImportPEM(pemData string) (string, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return "", fmt.Errorf("no PEM block in key data")
	}
	if _, err := x509.ParsePKCS8PrivateKey(block.Bytes); err != nil {
		return "", fmt.Errorf("parsing private key: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID()
	s.keys[id] = memguard.NewEnclave(block.Bytes)
	return id, nil
}

// Delete removes the key from the store.
func (s *SoftwareKeyStore) Delete(keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, keyID)
	return nil
}
