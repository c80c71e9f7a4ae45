// Package pki implements the host's certificate authority: a single root of
// trust plus a flat namespace of client leaf identities used by remote
// terminal clients to authenticate against the multiplexing server. CA and
// server material is created once; client certificates are issued and revoked
// against the certificate store, with serial allocation and the revocation
// record kept in a ledger.
package pki

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rgoodwin/muxgate/ledger"
	"github.com/rgoodwin/muxgate/storage"
)

// Certificate store file names within storage.KindRoot.
const (
	caKeyFile      = "ca.key"
	caCertFile     = "ca.crt"
	serverKeyFile  = "server.key"
	serverCertFile = "server.crt"
)

// Validity windows. The CA and the server identity share a 10-year lifetime;
// client identities get one year.
const (
	caValidityDays     = 3650
	serverValidityDays = 3650
	clientValidityDays = 365
)

// Certificate types reported by ListCertificates.
const (
	TypeCA     = "ca"
	TypeServer = "server"
	TypeClient = "client"
)

// Certificate status values.
const (
	StatusActive  = "active"
	StatusExpired = "expired"
	StatusRevoked = "revoked"
)

// nameRE is the client naming rule, checked before any store access.
var nameRE = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// IsReservedName reports whether name addresses the root material in lookups.
// Reserved names can never be issued as client identities.
func IsReservedName(name string) bool {
	return name == "ca" || name == "server"
}

// caSubject returns the fixed, host-independent distinguished name of the CA.
func caSubject() pkix.Name {
	return pkix.Name{
		CommonName:         "MuxGate Root CA",
		Organization:       []string{"MuxGate"},
		OrganizationalUnit: []string{"Terminal Access"},
	}
}

// Record is one entry of a ListCertificates snapshot.
type Record struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Serial    string    `json:"serial"`
	CreatedAt time.Time `json:"created_at"`
	NotAfter  time.Time `json:"not_after"`
	Status    string    `json:"status"`
}

// Detail is the audit view of a single certificate.
type Detail struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Subject     string    `json:"subject"`
	Issuer      string    `json:"issuer"`
	Serial      string    `json:"serial"`
	Fingerprint string    `json:"fingerprint_sha256"`
	NotBefore   time.Time `json:"not_before"`
	NotAfter    time.Time `json:"not_after"`
	Status      string    `json:"status"`
}

// Authority issues and revokes certificates against a repository and ledger.
type Authority struct {
	repo storage.Repository
	led  ledger.Ledger
	ks   KeyStore
	now  func() time.Time
}

// Option configures an Authority.
type Option func(*Authority)

// WithKeyStore overrides the default software key store.
func WithKeyStore(ks KeyStore) Option {
	return func(a *Authority) { a.ks = ks }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) { a.now = now }
}

// New returns an Authority over the given repository and ledger.
func New(repo storage.Repository, led ledger.Ledger, opts ...Option) *Authority {
	a := &Authority{
		repo: repo,
		led:  led,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.ks == nil {
		a.ks = NewSoftwareKeyStore()
	}
	return a
}

// Initialized reports whether CA material exists in the store.
func (a *Authority) Initialized() bool {
	_, keyErr := a.repo.Get(storage.KindRoot, caKeyFile)
	_, certErr := a.repo.Get(storage.KindRoot, caCertFile)
	return keyErr == nil || certErr == nil
}

// InitCA creates the CA and the server identity in one operation. Both
// succeed or the operation reports failure; partial output from a failed run
// may remain in the store but is never reported as success. Fails with
// ErrAlreadyInitialized if either CA file pre-exists.
func (a *Authority) InitCA(ctx context.Context, host HostInfo) error {
	release, err := a.repo.Lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	if a.Initialized() {
		return ErrAlreadyInitialized
	}

	// A clean store with leftover ledger state means the previous CA was
	// destroyed out-of-band; its serials and revocations no longer apply.
	if err := a.led.Reset(); err != nil {
		return fmt.Errorf("resetting ledger: %w", err)
	}

	now := a.now().UTC()

	// Root certificate, self-signed.
	caKeyID, err := a.ks.GenerateKey()
	if err != nil {
		return fmt.Errorf("%w: generating CA key: %v", ErrCryptoFailure, err)
	}
	caSigner, err := a.ks.Signer(caKeyID)
	if err != nil {
		return fmt.Errorf("%w: loading CA signer: %v", ErrCryptoFailure, err)
	}
	caSerial, err := a.led.NextSerial()
	if err != nil {
		return err
	}
	caTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(caSerial),
		Subject:               caSubject(),
		NotBefore:             now,
		NotAfter:              now.AddDate(0, 0, caValidityDays),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, caSigner.Public(), caSigner)
	if err != nil {
		return fmt.Errorf("%w: self-signing CA certificate: %v", ErrCryptoFailure, err)
	}
	caKeyPEM, err := a.ks.ExportPEM(caKeyID)
	if err != nil {
		return fmt.Errorf("%w: exporting CA key: %v", ErrCryptoFailure, err)
	}
	if err := a.repo.PutExclusive(storage.KindRoot, caKeyFile, []byte(caKeyPEM), 0o600); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return ErrAlreadyInitialized
		}
		return fmt.Errorf("storing CA key: %w", err)
	}
	if err := a.repo.Put(storage.KindRoot, caCertFile, encodeCertPEM(caDER), 0o644); err != nil {
		return fmt.Errorf("storing CA certificate: %w", err)
	}

	// Server identity, signed by the fresh CA. SANs are mandatory here:
	// common-name-only server certificates fail modern client validation.
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		return fmt.Errorf("%w: parsing CA certificate: %v", ErrCryptoFailure, err)
	}
	serverKeyID, err := a.ks.GenerateKey()
	if err != nil {
		return fmt.Errorf("%w: generating server key: %v", ErrCryptoFailure, err)
	}
	serverSigner, err := a.ks.Signer(serverKeyID)
	if err != nil {
		return fmt.Errorf("%w: loading server signer: %v", ErrCryptoFailure, err)
	}
	serverSerial, err := a.led.NextSerial()
	if err != nil {
		return err
	}
	serverTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(serverSerial),
		Subject: pkix.Name{
			CommonName:   host.Hostname,
			Organization: []string{"MuxGate"},
		},
		NotBefore:             now,
		NotAfter:              now.AddDate(0, 0, serverValidityDays),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              host.dnsNames(),
		IPAddresses:           host.ipAddresses(),
	}
	serverDER, err := x509.CreateCertificate(rand.Reader, serverTemplate, caCert, serverSigner.Public(), caSigner)
	if err != nil {
		return fmt.Errorf("%w: signing server certificate: %v", ErrCryptoFailure, err)
	}
	serverKeyPEM, err := a.ks.ExportPEM(serverKeyID)
	if err != nil {
		return fmt.Errorf("%w: exporting server key: %v", ErrCryptoFailure, err)
	}
	if err := a.repo.Put(storage.KindRoot, serverKeyFile, []byte(serverKeyPEM), 0o600); err != nil {
		return fmt.Errorf("storing server key: %w", err)
	}
	if err := a.repo.Put(storage.KindRoot, serverCertFile, encodeCertPEM(serverDER), 0o644); err != nil {
		return fmt.Errorf("storing server certificate: %w", err)
	}
	return nil
}

// IssueClientCertificate generates a key pair, signs a one-year client
// certificate with CN=name, and persists both under the client's name.
// Client identities are validated by the client-certificate trust path, not
// hostname matching, so they carry no SANs.
func (a *Authority) IssueClientCertificate(ctx context.Context, name string) (*Record, error) {
	if !nameRE.MatchString(name) {
		return nil, fmt.Errorf("%w: %q must match [A-Za-z0-9_-]{1,64}", ErrInvalidName, name)
	}
	if IsReservedName(name) {
		return nil, fmt.Errorf("%w: %q is reserved for the root material", ErrInvalidName, name)
	}

	release, err := a.repo.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	caCert, caSigner, err := a.loadCA()
	if err != nil {
		return nil, err
	}

	if _, err := a.repo.Get(storage.KindClient, name+".crt"); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	keyID, err := a.ks.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: generating client key: %v", ErrCryptoFailure, err)
	}
	signer, err := a.ks.Signer(keyID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading client signer: %v", ErrCryptoFailure, err)
	}
	serial, err := a.led.NextSerial()
	if err != nil {
		return nil, err
	}

	now := a.now().UTC()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject: pkix.Name{
			CommonName:   name,
			Organization: []string{"MuxGate"},
		},
		NotBefore:             now,
		NotAfter:              now.AddDate(0, 0, clientValidityDays),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, caCert, signer.Public(), caSigner)
	if err != nil {
		return nil, fmt.Errorf("%w: signing client certificate: %v", ErrCryptoFailure, err)
	}
	keyPEM, err := a.ks.ExportPEM(keyID)
	if err != nil {
		return nil, fmt.Errorf("%w: exporting client key: %v", ErrCryptoFailure, err)
	}

	if err := a.repo.Put(storage.KindClient, name+".key", []byte(keyPEM), 0o600); err != nil {
		return nil, fmt.Errorf("storing client key: %w", err)
	}
	if err := a.repo.Put(storage.KindClient, name+".crt", encodeCertPEM(der), 0o644); err != nil {
		return nil, fmt.Errorf("storing client certificate: %w", err)
	}

	return &Record{
		Name:      name,
		Type:      TypeClient,
		Serial:    serialHex(big.NewInt(serial)),
		CreatedAt: now,
		NotAfter:  template.NotAfter,
		Status:    StatusActive,
	}, nil
}

// RevokeClientCertificate quarantines the client's key/cert pair under the
// revoked section and records the serial in the ledger. The name becomes
// available for reissue immediately; the quarantined material remains for
// audit.
func (a *Authority) RevokeClientCertificate(ctx context.Context, name string) error {
	release, err := a.repo.Lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	certPEM, err := a.repo.Get(storage.KindClient, name+".crt")
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return err
	}
	cert, err := parseCertPEM(certPEM)
	if err != nil {
		return fmt.Errorf("parsing certificate for %s: %w", name, err)
	}
	serial := serialHex(cert.SerialNumber)

	if err := a.led.Record(ledger.Entry{
		Name:      name,
		Serial:    serial,
		RevokedAt: a.now().UTC(),
	}); err != nil {
		return err
	}

	quarantine := fmt.Sprintf("%s-%s", name, serial)
	if err := a.repo.Rename(storage.KindClient, name+".crt", storage.KindRevoked, quarantine+".crt"); err != nil {
		return fmt.Errorf("quarantining certificate: %w", err)
	}
	// A missing key file is tolerated; the certificate is the credential
	// that matters for trust decisions.
	if err := a.repo.Rename(storage.KindClient, name+".key", storage.KindRevoked, quarantine+".key"); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("quarantining key: %w", err)
	}
	return nil
}

// ListCertificates returns a snapshot of every certificate in the store: the
// CA and server identity first, then clients newest-first, then quarantined
// revocations. The slice is stable for the duration of one call only.
func (a *Authority) ListCertificates(ctx context.Context) ([]Record, error) {
	var records []Record

	for _, root := range []struct {
		file, name, typ string
	}{
		{caCertFile, "ca", TypeCA},
		{serverCertFile, "server", TypeServer},
	} {
		certPEM, err := a.repo.Get(storage.KindRoot, root.file)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		cert, err := parseCertPEM(certPEM)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", root.file, err)
		}
		records = append(records, a.record(root.name, root.typ, cert, false))
	}

	clients, err := a.clientRecords()
	if err != nil {
		return nil, err
	}
	records = append(records, clients...)

	revoked, err := a.revokedRecords()
	if err != nil {
		return nil, err
	}
	return append(records, revoked...), nil
}

func (a *Authority) clientRecords() ([]Record, error) {
	names, err := a.repo.List(storage.KindClient)
	if err != nil {
		return nil, err
	}
	var records []Record
	for _, file := range names {
		if !strings.HasSuffix(file, ".crt") {
			continue
		}
		certPEM, err := a.repo.Get(storage.KindClient, file)
		if err != nil {
			// Tolerate concurrent revocation between List and Get.
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		cert, err := parseCertPEM(certPEM)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", file, err)
		}
		revoked, err := a.led.IsRevoked(serialHex(cert.SerialNumber))
		if err != nil {
			return nil, err
		}
		records = append(records, a.record(strings.TrimSuffix(file, ".crt"), TypeClient, cert, revoked))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (a *Authority) revokedRecords() ([]Record, error) {
	names, err := a.repo.List(storage.KindRevoked)
	if err != nil {
		return nil, err
	}
	var records []Record
	for _, file := range names {
		if !strings.HasSuffix(file, ".crt") {
			continue
		}
		certPEM, err := a.repo.Get(storage.KindRevoked, file)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		cert, err := parseCertPEM(certPEM)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", file, err)
		}
		records = append(records, a.record(cert.Subject.CommonName, TypeClient, cert, true))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// GetCertificateDetail returns the audit view of a certificate. The reserved
// names "ca" and "server" address the root material; anything else is looked
// up among active clients.
func (a *Authority) GetCertificateDetail(ctx context.Context, name string) (*Detail, error) {
	var (
		certPEM []byte
		err     error
		typ     = TypeClient
	)
	switch name {
	case "ca":
		certPEM, err = a.repo.Get(storage.KindRoot, caCertFile)
		typ = TypeCA
	case "server":
		certPEM, err = a.repo.Get(storage.KindRoot, serverCertFile)
		typ = TypeServer
	default:
		certPEM, err = a.repo.Get(storage.KindClient, name+".crt")
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	cert, err := parseCertPEM(certPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate for %s: %w", name, err)
	}

	revoked := false
	if typ == TypeClient {
		revoked, err = a.led.IsRevoked(serialHex(cert.SerialNumber))
		if err != nil {
			return nil, err
		}
	}
	fingerprint := sha256.Sum256(cert.Raw)
	rec := a.record(name, typ, cert, revoked)
	return &Detail{
		Name:        name,
		Type:        typ,
		Subject:     subjectString(cert.Subject),
		Issuer:      subjectString(cert.Issuer),
		Serial:      rec.Serial,
		Fingerprint: hex.EncodeToString(fingerprint[:]),
		NotBefore:   cert.NotBefore,
		NotAfter:    cert.NotAfter,
		Status:      rec.Status,
	}, nil
}

// CACertificatePEM returns the CA certificate for distribution to clients.
func (a *Authority) CACertificatePEM(ctx context.Context) ([]byte, error) {
	certPEM, err := a.repo.Get(storage.KindRoot, caCertFile)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, err
	}
	return certPEM, nil
}

// loadCA reads the CA certificate and key back from the store. A missing CA
// maps to ErrNotInitialized.
func (a *Authority) loadCA() (*x509.Certificate, crypto.Signer, error) {
	certPEM, err := a.repo.Get(storage.KindRoot, caCertFile)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrNotInitialized
		}
		return nil, nil, err
	}
	cert, err := parseCertPEM(certPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing CA certificate: %w", err)
	}
	keyPEM, err := a.repo.Get(storage.KindRoot, caKeyFile)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrNotInitialized
		}
		return nil, nil, err
	}
	keyID, err := a.ks.ImportPEM(string(keyPEM))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: importing CA key: %v", ErrCryptoFailure, err)
	}
	signer, err := a.ks.Signer(keyID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: loading CA signer: %v", ErrCryptoFailure, err)
	}
	return cert, signer, nil
}

func (a *Authority) record(name, typ string, cert *x509.Certificate, revoked bool) Record {
	status := StatusActive
	switch {
	case revoked:
		status = StatusRevoked
	case a.now().After(cert.NotAfter):
		status = StatusExpired
	}
	return Record{
		Name:      name,
		Type:      typ,
		Serial:    serialHex(cert.SerialNumber),
		CreatedAt: cert.NotBefore,
		NotAfter:  cert.NotAfter,
		Status:    status,
	}
}

func encodeCertPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func parseCertPEM(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("no certificate PEM block")
	}
	return x509.ParseCertificate(block.Bytes)
}

func serialHex(serial *big.Int) string {
	return hex.EncodeToString(serial.Bytes())
}

// subjectString formats a pkix.Name as a readable DN string.
func subjectString(name pkix.Name) string {
	var parts []string
	if name.CommonName != "" {
		parts = append(parts, "CN="+name.CommonName)
	}
	for _, ou := range name.OrganizationalUnit {
		parts = append(parts, "OU="+ou)
	}
	for _, o := range name.Organization {
		parts = append(parts, "O="+o)
	}
	for _, c := range name.Country {
		parts = append(parts, "C="+c)
	}
	return strings.Join(parts, ", ")
}
