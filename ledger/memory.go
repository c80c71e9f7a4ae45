package ledger

import "sync"

// Memory is an in-memory Ledger for tests.
type Memory struct {
	mu      sync.Mutex
	next    int64
	entries []Entry
}

var _ Ledger = (*Memory)(nil)

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{next: 1}
}

func (l *Memory) NextSerial() (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	serial := l.next
	l.next++
	return serial, nil
}

func (l *Memory) Record(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

func (l *Memory) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...), nil
}

func (l *Memory) IsRevoked(serial string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Serial == serial {
			return true, nil
		}
	}
	return false, nil
}

func (l *Memory) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next = 1
	l.entries = nil
	return nil
}

func (l *Memory) Close() error { return nil }
