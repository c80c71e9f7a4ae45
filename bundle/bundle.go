// Package bundle assembles the downloadable credential archive handed to a
// client device: the CA certificate, the client's certificate and private
// key, and a generated client configuration snippet. It operates only on
// already-issued material.
//
// The CA private key must never appear in a bundle under any circumstance;
// this package never reads it, and the tests assert the archive cannot
// contain it.
package bundle

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/rgoodwin/muxgate/config"
	"github.com/rgoodwin/muxgate/pki"
	"github.com/rgoodwin/muxgate/storage"
)

// Packager builds credential archives from the certificate store and the
// current service settings.
type Packager struct {
	repo storage.Repository
	cfg  *config.Store
}

// New returns a Packager over the given store.
func New(repo storage.Repository, cfg *config.Store) *Packager {
	return &Packager{repo: repo, cfg: cfg}
}

// Build writes a zip archive with the credentials for name to w. Fails with
// pki.ErrNotFound when no active certificate for name exists.
func (p *Packager) Build(name string, w io.Writer) error {
	clientCert, err := p.repo.Get(storage.KindClient, name+".crt")
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", pki.ErrNotFound, name)
		}
		return err
	}
	clientKey, err := p.repo.Get(storage.KindClient, name+".key")
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s (key missing)", pki.ErrNotFound, name)
		}
		return err
	}
	caCert, err := p.repo.Get(storage.KindRoot, "ca.crt")
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return pki.ErrNotInitialized
		}
		return err
	}

	zw := zip.NewWriter(w)
	entries := []struct {
		name string
		data []byte
	}{
		{"ca.crt", caCert},
		{"client.crt", clientCert},
		{"client.key", clientKey},
		{"wezterm-client.lua", clientSnippet(p.cfg.Read(), name)},
	}
	for _, e := range entries {
		f, err := zw.Create(e.name)
		if err != nil {
			return fmt.Errorf("creating archive entry %s: %w", e.name, err)
		}
		if _, err := f.Write(e.data); err != nil {
			return fmt.Errorf("writing archive entry %s: %w", e.name, err)
		}
	}
	return zw.Close()
}

// BuildFile stages the archive for name into the system temp directory and
// returns its path. The archive is a one-time export; the caller deletes it
// after transfer.
func (p *Packager) BuildFile(name string) (string, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("muxgate-bundle-%s.zip", uuid.NewString()))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("staging bundle: %w", err)
	}
	if err := p.Build(name, f); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// clientSnippet renders the wezterm client configuration embedded in the
// bundle. Local file paths are placeholders the end user fills in after
// unpacking.
func clientSnippet(s config.Settings, name string) []byte {
	address := s.ListenAddress
	// A wildcard bind address is meaningless to a remote client; leave a
	// placeholder to fill in with the host's reachable address.
	if address == "0.0.0.0" || address == "::" {
		address = "HOST_ADDRESS"
	}
	remote := net.JoinHostPort(address, strconv.Itoa(s.ListenPort))

	var b strings.Builder
	b.WriteString("-- Client connection snippet generated by muxgate.\n")
	fmt.Fprintf(&b, "-- Issued for client %q. Adjust the pem_* paths to where\n", name)
	b.WriteString("-- you unpacked this bundle, then merge into your wezterm config.\n")
	b.WriteString("return {\n")
	b.WriteString("  tls_clients = {\n")
	b.WriteString("    {\n")
	fmt.Fprintf(&b, "      name = %q,\n", "muxgate")
	fmt.Fprintf(&b, "      remote_address = %q,\n", remote)
	b.WriteString("      bootstrap_via_ssh = false,\n")
	b.WriteString("      pem_private_key = \"/path/to/client.key\",\n")
	b.WriteString("      pem_cert = \"/path/to/client.crt\",\n")
	b.WriteString("      pem_ca = \"/path/to/ca.crt\",\n")
	b.WriteString("    },\n")
	b.WriteString("  },\n")
	b.WriteString("}\n")
	return []byte(b.String())
}
