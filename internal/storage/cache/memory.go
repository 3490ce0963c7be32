package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type memoryEntry struct {
	value     []byte
	list      [][]byte
	expiresAt time.Time
}

// MemoryStore in-process Store used when Redis is not configured and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty store. now defaults to time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{entries: make(map[string]*memoryEntry), now: now}
}

// live returns the entry if present and not expired. Caller holds mu.
func (s *MemoryStore) live(key string) *memoryEntry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return nil
	}
	return e
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil || e.value == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &memoryEntry{value: append([]byte{}, value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *MemoryStore) LPush(_ context.Context, key string, values ...[]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		e = &memoryEntry{}
		s.entries[key] = e
	}
	if e.value != nil {
		return errors.Errorf("memory lpush %s: wrong type", key)
	}
	for _, v := range values {
		e.list = append([][]byte{append([]byte(nil), v...)}, e.list...)
	}
	return nil
}

func (s *MemoryStore) LTrim(_ context.Context, key string, start, stop int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		return nil
	}
	from, to, ok := listBounds(len(e.list), start, stop)
	if !ok {
		e.list = nil
		return nil
	}
	e.list = e.list[from : to+1]
	return nil
}

func (s *MemoryStore) LRange(_ context.Context, key string, start, stop int64) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		return nil, nil
	}
	from, to, ok := listBounds(len(e.list), start, stop)
	if !ok {
		return nil, nil
	}
	out := make([][]byte, 0, to-from+1)
	for _, v := range e.list[from : to+1] {
		out = append(out, append([]byte(nil), v...))
	}
	return out, nil
}

// listBounds resolves Redis-style inclusive indexes, negative values count from the end.
func listBounds(n int, start, stop int64) (int, int, bool) {
	size := int64(n)
	if start < 0 {
		start += size
	}
	if stop < 0 {
		stop += size
	}
	if start < 0 {
		start = 0
	}
	if stop >= size {
		stop = size - 1
	}
	if size == 0 || start > stop {
		return 0, 0, false
	}
	return int(start), int(stop), true
}

func (s *MemoryStore) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	var n int64
	if e != nil {
		parsed, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "memory incr %s", key)
		}
		n = parsed
	} else {
		e = &memoryEntry{}
		s.entries[key] = e
	}
	n++
	e.value = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e := s.live(key); e != nil {
		e.expiresAt = s.now().Add(ttl)
	}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
