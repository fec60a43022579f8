package chunkmine

import (
	"fmt"
	"slices"
	"sync"

	"github.com/chunkmine/chunkmine-go/pkg/chunkmine/pattern"
)

// Store accumulates records in buckets keyed by document index.
//
// A bucket is created on its first record and removed when exported with
// eviction. The live record count is the total size of all buckets. All
// methods are safe for concurrent use; aggregate reads see a consistent
// snapshot.
type Store struct {
	mu      sync.Mutex
	buckets map[string][]*pattern.Record
	indices []string // active indices in creation order
	records int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{buckets: make(map[string][]*pattern.Record)}
}

// Append adds records to the bucket of index, creating it when needed.
func (s *Store) Append(index string, records ...*pattern.Record) {
	if len(records) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[index]; !ok {
		s.indices = append(s.indices, index)
	}
	s.buckets[index] = append(s.buckets[index], records...)
	s.records += len(records)
}

// Records returns a copy of the bucket of index.
func (s *Store) Records(index string) []*pattern.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.buckets[index])
}

// Has reports whether index has a bucket.
func (s *Store) Has(index string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.buckets[index]
	return ok
}

// Len returns the live record count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records
}

// Indices returns the active document indices in creation order.
func (s *Store) Indices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.indices)
}

// Export converts the bucket of index into a Table. With evict the bucket
// is removed and the live record count drops by its size; without it the
// store is left untouched.
func (s *Store) Export(index string, evict bool) (*Table, error) {
	s.mu.Lock()
	bucket, ok := s.buckets[index]
	if ok && evict {
		delete(s.buckets, index)
		s.indices = slices.DeleteFunc(s.indices, func(i string) bool { return i == index })
		s.records -= len(bucket)
	}
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDocument, index)
	}
	return NewTable(index, bucket), nil
}
