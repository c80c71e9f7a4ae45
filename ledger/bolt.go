package ledger

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

var (
	bucketSerials     = []byte("serials")
	bucketRevocations = []byte("revocations")

	keyNextSerial = []byte("next")
)

// Bolt is a bbolt-backed Ledger, stored as index.db inside the certificate
// store directory.
type Bolt struct {
	db *bbolt.DB
}

var _ Ledger = (*Bolt)(nil)

// OpenBolt opens (or creates) the ledger database at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening ledger db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketSerials, bucketRevocations} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing ledger buckets: %w", err)
	}
	return &Bolt{db: db}, nil
}

func (l *Bolt) Close() error {
	return l.db.Close()
}

func (l *Bolt) NextSerial() (int64, error) {
	var serial int64
	err := l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSerials)
		serial = 1
		if v := b.Get(keyNextSerial); v != nil {
			serial = int64(binary.BigEndian.Uint64(v))
		}
		next := make([]byte, 8)
		binary.BigEndian.PutUint64(next, uint64(serial+1))
		return b.Put(keyNextSerial, next)
	})
	if err != nil {
		return 0, fmt.Errorf("allocating serial: %w", err)
	}
	return serial, nil
}

func (l *Bolt) Record(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding revocation entry: %w", err)
	}
	err = l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRevocations)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, data)
	})
	if err != nil {
		return fmt.Errorf("recording revocation: %w", err)
	}
	return nil
}

func (l *Bolt) Entries() ([]Entry, error) {
	var entries []Entry
	err := l.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRevocations).ForEach(func(_, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decoding revocation entry: %w", err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	return entries, err
}

func (l *Bolt) IsRevoked(serial string) (bool, error) {
	entries, err := l.Entries()
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Serial == serial {
			return true, nil
		}
	}
	return false, nil
}

func (l *Bolt) Reset() error {
	return l.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketSerials, bucketRevocations} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}
