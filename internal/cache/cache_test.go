package cache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(ttl time.Duration, max int) (*Store, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStore(ttl, max)
	s.now = c.now
	return s, c
}

func TestKey_Consistency(t *testing.T) {
	k1 := Key([]byte("tieup"), []byte("pdf"))
	k2 := Key([]byte("tieup"), []byte("pdf"))
	if k1 != k2 {
		t.Errorf("expected identical keys, got %q and %q", k1, k2)
	}
	if len(k1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(k1))
	}
}

func TestKey_PartBoundaries(t *testing.T) {
	if Key([]byte("ab"), []byte("c")) == Key([]byte("a"), []byte("bc")) {
		t.Error("expected different keys for different part boundaries")
	}
}

func TestStore_PutGet(t *testing.T) {
	s, _ := newTestStore(time.Minute, 0)
	s.Put(&Document{ID: "a", Data: []byte("pdf")})
	doc := s.Get("a")
	if doc == nil {
		t.Fatal("expected document")
	}
	if string(doc.Data) != "pdf" {
		t.Errorf("expected %q, got %q", "pdf", doc.Data)
	}
	if s.Get("missing") != nil {
		t.Error("expected nil for missing id")
	}
}

func TestStore_Expiry(t *testing.T) {
	s, c := newTestStore(time.Minute, 0)
	s.Put(&Document{ID: "a"})
	s.Put(&Document{ID: "b"})

	c.advance(30 * time.Second)
	if s.Get("a") == nil {
		t.Fatal("expected a to be alive")
	}
	c.advance(45 * time.Second)
	s.Cleanup()
	if s.Len() != 1 {
		t.Errorf("expected 1 document after cleanup, got %d", s.Len())
	}
	if s.Get("b") != nil {
		t.Error("expected b to be expired")
	}
	c.advance(2 * time.Minute)
	if s.Get("a") != nil {
		t.Error("expected a to be expired")
	}
}

func TestStore_EvictsLeastRecentlyUsed(t *testing.T) {
	s, c := newTestStore(time.Hour, 2)
	s.Put(&Document{ID: "a"})
	c.advance(time.Second)
	s.Put(&Document{ID: "b"})
	c.advance(time.Second)
	s.Get("a")
	c.advance(time.Second)
	s.Put(&Document{ID: "c"})

	if s.Len() != 2 {
		t.Fatalf("expected 2 documents, got %d", s.Len())
	}
	if s.Get("b") != nil {
		t.Error("expected b to be evicted")
	}
	if s.Get("a") == nil || s.Get("c") == nil {
		t.Error("expected a and c to remain")
	}
}

func TestStore_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewStore(time.Nanosecond, 0)
	s.Put(&Document{ID: "a"})
	s.Start(context.Background(), time.Millisecond)
	deadline := time.Now().Add(time.Second)
	for s.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	if s.Len() != 0 {
		t.Errorf("expected cleanup loop to evict expired document, got %d left", s.Len())
	}
}
