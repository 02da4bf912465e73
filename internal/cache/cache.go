package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

// Document is a rendered lift plan kept for re-download.
type Document struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Picks       int    `json:"picks"`
	Data        []byte `json:"-"`

	CreatedAt  time.Time `json:"created_at"`
	AccessedAt time.Time `json:"accessed_at"`
}

// Store is a thread-safe in-memory document cache with TTL eviction and a
// bound on the number of entries.
type Store struct {
	mu   sync.Mutex
	docs map[string]*Document
	ttl  time.Duration
	max  int
	now  func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewStore(ttl time.Duration, maxEntries int) *Store {
	return &Store{
		docs: make(map[string]*Document),
		ttl:  ttl,
		max:  maxEntries,
		now:  time.Now,
	}
}

// Put stores doc under doc.ID, evicting the least recently used entry
// when the store is full.
func (s *Store) Put(doc *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	doc.CreatedAt = now
	doc.AccessedAt = now
	if _, exists := s.docs[doc.ID]; !exists && s.max > 0 && len(s.docs) >= s.max {
		s.evictOldestLocked()
	}
	s.docs[doc.ID] = doc
}

// Get returns the document and refreshes its access time, or nil if it is
// absent or expired.
func (s *Store) Get(id string) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil
	}
	now := s.now()
	if now.Sub(doc.AccessedAt) > s.ttl {
		delete(s.docs, id)
		return nil
	}
	doc.AccessedAt = now
	return doc
}

// Len returns the number of cached documents.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// Cleanup removes expired documents.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, doc := range s.docs {
		if now.Sub(doc.AccessedAt) > s.ttl {
			delete(s.docs, id)
		}
	}
}

func (s *Store) evictOldestLocked() {
	var oldest *Document
	for _, doc := range s.docs {
		if oldest == nil || doc.AccessedAt.Before(oldest.AccessedAt) {
			oldest = doc
		}
	}
	if oldest != nil {
		delete(s.docs, oldest.ID)
	}
}

// Start runs Cleanup periodically until Stop is called or ctx ends.
func (s *Store) Start(ctx context.Context, every time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}

// Stop halts the cleanup loop.
func (s *Store) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Key derives a content key from the given parts. Each part is length
// prefixed so that ("ab", "c") and ("a", "bc") differ.
func Key(parts ...[]byte) string {
	h := sha256.New()
	var n [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write(p)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
