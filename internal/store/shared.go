package store

import (
	"golang.org/x/sync/singleflight"
)

// Shared wraps the process-wide cache. Acquire collapses concurrent
// producers of the same key into a single call. One Shared must be used by
// every client of a process.
type Shared struct {
	Store

	flights singleflight.Group
}

// NewShared wraps s.
func NewShared(s Store) *Shared {
	return &Shared{Store: s}
}

// Acquire runs produce for key unless a call for the same key is already in
// flight, in which case it waits for and returns that call's result.
func (s *Shared) Acquire(key string, produce func() (any, error)) (any, error) {
	v, err, _ := s.flights.Do(key, produce)
	return v, err
}
