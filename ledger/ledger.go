// Package ledger tracks the two pieces of CA state that must survive outside
// the certificate files themselves: the monotonic serial counter (serial
// numbers are unique per CA lifetime) and the revocation record. Revoked
// certificates stay quarantined in the store; the ledger is what marks them
// revoked for listing and verification purposes.
package ledger

import "time"

// Entry records a single revoked certificate.
type Entry struct {
	Name      string    `json:"name"`
	Serial    string    `json:"serial"`
	RevokedAt time.Time `json:"revoked_at"`
}

// Ledger persists serial allocation and revocation entries.
type Ledger interface {
	// NextSerial allocates and persists the next serial number. The first
	// allocation of a fresh ledger returns 1.
	NextSerial() (int64, error)

	// Record appends a revocation entry.
	Record(e Entry) error

	// Entries returns all revocation entries in insertion order.
	Entries() ([]Entry, error)

	// IsRevoked reports whether the given serial (hex form) has been revoked.
	IsRevoked(serial string) (bool, error)

	// Reset discards all ledger state. Used when a CA is initialized on a
	// clean store that still carries an orphaned ledger from a destroyed CA.
	Reset() error

	Close() error
}
