// Package artifact keeps downloadable validation results in memory for a
// bounded time after their run finishes.
package artifact

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long an artifact stays downloadable after creation.
const DefaultTTL = time.Hour

// Artifact is one stored result file.
type Artifact struct {
	JobID     string
	Content   string
	CreatedAt time.Time
}

// Store holds artifacts keyed by job id. Implementations are safe for
// concurrent use by the run orchestrator and the download handler.
type Store interface {
	// Put stores content under jobID, sweeping expired entries first.
	Put(jobID, content string)
	// Get returns the artifact, or false if unknown or past its TTL.
	Get(jobID string) (*Artifact, bool)
	// SweepExpired removes entries older than the TTL and reports how many.
	SweepExpired() int
}

// MemoryStore is the in-process Store. Artifacts do not survive a restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Artifact
	ttl     time.Duration

	now func() time.Time
}

// NewMemoryStore creates a store with the given TTL; zero selects DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]*Artifact),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores content under jobID. Expired entries are swept lazily here so
// the store needs no background goroutine.
func (s *MemoryStore) Put(jobID, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	s.entries[jobID] = &Artifact{
		JobID:     jobID,
		Content:   content,
		CreatedAt: s.now(),
	}
}

// Get returns the artifact for jobID if it exists and has not expired.
func (s *MemoryStore) Get(jobID string) (*Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[jobID]
	if !ok {
		return nil, false
	}
	if s.now().Sub(entry.CreatedAt) > s.ttl {
		delete(s.entries, jobID)
		return nil, false
	}
	return entry, true
}

// SweepExpired removes all expired entries.
func (s *MemoryStore) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked()
}

func (s *MemoryStore) sweepLocked() int {
	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, entry := range s.entries {
		if entry.CreatedAt.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// NewJobID returns a unique, time-prefixed job identifier.
func NewJobID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("recon-%d-%s", time.Now().UnixMilli(), suffix)
}
