package store

import (
	"strconv"
	"time"
)

// Set unconditionally overwrites key, even if it previously held a
// different type. px, if non-zero, stores an absolute expiry computed
// from the current wall clock.
func (s *Store) Set(key, value string, px time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &Entry{Type: StringType, Data: value}
	if px > 0 {
		at := time.Now().Add(px)
		e.ExpiresAt = &at
	}
	s.data[key] = e
}

// Get returns (value, true) for a live string key, or ("", false) for
// a missing, expired, or wrong-typed key. Wrong type is reported
// separately so callers can distinguish it from "absent".
func (s *Store) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.lookup(key, time.Now())
	if e == nil {
		return "", false, nil
	}
	if e.Type != StringType {
		return "", false, ErrWrongType
	}
	return e.Data.(string), true, nil
}

// Incr parses the current value as a signed decimal integer, adds one,
// and stores the result back as a string. A missing key starts at "1".
func (s *Store) Incr(key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.reapIfExpired(key, now)
	e, ok := s.data[key]
	if !ok {
		s.data[key] = &Entry{Type: StringType, Data: "1"}
		return 1, nil
	}
	if e.Type != StringType {
		return 0, ErrWrongType
	}
	n, err := strconv.ParseInt(e.Data.(string), 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}
	n++
	e.Data = strconv.FormatInt(n, 10)
	return n, nil
}
