package api

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// Stats counts conversions served since start.
type Stats struct {
	Conversions atomic.Int64
	CacheHits   atomic.Int64
	Failures    atomic.Int64
	Picks       atomic.Int64
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"conversions":    s.stats.Conversions.Load(),
		"cache_hits":     s.stats.CacheHits.Load(),
		"failures":       s.stats.Failures.Load(),
		"picks":          s.stats.Picks.Load(),
		"cached_docs":    s.docs.Len(),
		"default_shafts": s.cfg.DefaultShafts,
		"default_format": s.cfg.DefaultFormat,
	})
}
