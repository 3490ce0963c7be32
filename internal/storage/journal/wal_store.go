// Package journal keeps a local append-only record of plans, decisions and trades.
package journal

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	DefaultDir   = "./wal/journal"
	segmentLimit = 100
	maxSegments  = 10
)

// Kind of journal entry, used as the WAL key prefix.
type Kind string

const (
	KindPlan     Kind = "plan"
	KindDecision Kind = "decision"
	KindTrade    Kind = "trade"
)

// Entry is a decoded journal record.
type Entry struct {
	Index     uint64          `json:"index"`
	Kind      Kind            `json:"kind"`
	Symbol    string          `json:"symbol"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type envelope struct {
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// WALStore persists journal entries in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
	now func() time.Time
}

// NewWALStore initializes a WAL-backed journal.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "journal_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init journal WAL")
	}

	return &WALStore{wal: wal, now: time.Now}, nil
}

func key(kind Kind, symbol string) string {
	return fmt.Sprintf("%s_%s", kind, symbol)
}

func parseKey(k string) (Kind, string, bool) {
	kind, symbol, ok := strings.Cut(k, "_")
	if !ok {
		return "", "", false
	}
	switch Kind(kind) {
	case KindPlan, KindDecision, KindTrade:
		return Kind(kind), symbol, true
	}
	return "", "", false
}

// Append writes v as a journal entry of the given kind.
func (s *WALStore) Append(kind Kind, symbol string, v any) error {
	if s == nil || s.wal == nil {
		return errors.New("journal is not initialized")
	}
	if symbol == "" {
		return errors.Errorf("%s entry symbol is required", kind)
	}

	body, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s entry", kind)
	}
	payload, err := json.Marshal(envelope{Timestamp: s.now().UTC(), Payload: body})
	if err != nil {
		return errors.Wrapf(err, "marshal %s envelope", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key(kind, symbol), payload)
}

// EntriesAfter returns all entries written after the provided WAL index.
func (s *WALStore) EntriesAfter(index uint64) ([]Entry, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	entries := make([]Entry, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		k, payload, err := s.wal.Get(idx)
		if err != nil {
			// rotated out
			continue
		}
		kind, symbol, ok := parseKey(k)
		if !ok {
			continue
		}
		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, errors.Wrapf(err, "decode journal entry %d", idx)
		}
		entries = append(entries, Entry{
			Index:     idx,
			Kind:      kind,
			Symbol:    symbol,
			Timestamp: env.Timestamp,
			Payload:   env.Payload,
		})
	}

	return entries, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
