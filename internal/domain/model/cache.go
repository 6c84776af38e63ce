package model

import "time"

// CacheRecord is a cached payload with its write time. A stale record is
// still readable; only freshness changes.
type CacheRecord[T any] struct {
	Payload   T
	WrittenAt time.Time
}

func (r CacheRecord[T]) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.WrittenAt) < ttl
}
