package store

import "time"

// List is a sequence of string elements. Index-addressed commands
// (LINDEX, LSET, LRANGE) are common enough here that a slice backs it
// rather than a linked structure; pushes/pops at either end amortize
// fine for the sizes this server deals with.
type List struct {
	elems []string
}

func (s *Store) listFor(key string, create bool) (*List, error) {
	now := time.Now()
	s.reapIfExpired(key, now)
	e, ok := s.data[key]
	if !ok {
		if !create {
			return nil, nil
		}
		l := &List{}
		s.data[key] = &Entry{Type: ListType, Data: l}
		return l, nil
	}
	if e.Type != ListType {
		return nil, ErrWrongType
	}
	return e.Data.(*List), nil
}

// RPush appends vals to the tail in argument order.
func (s *Store) RPush(key string, vals ...string) (int64, error) {
	s.mu.Lock()
	l, err := s.listFor(key, true)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	l.elems = append(l.elems, vals...)
	n := int64(len(l.elems))
	s.mu.Unlock()
	s.Notifier(key).broadcast()
	return n, nil
}

// LPush prepends vals to the head, as if each argument were pushed to
// the head in turn: the batch is reversed, so the last argument ends
// up at index 0 (LPUSH k a b c then LRANGE reads c b a).
func (s *Store) LPush(key string, vals ...string) (int64, error) {
	s.mu.Lock()
	l, err := s.listFor(key, true)
	if err != nil {
		s.mu.Unlock()
		return 0, err
	}
	rev := make([]string, len(vals))
	for i, v := range vals {
		rev[len(vals)-1-i] = v
	}
	l.elems = append(rev, l.elems...)
	n := int64(len(l.elems))
	s.mu.Unlock()
	s.Notifier(key).broadcast()
	return n, nil
}

// LLen returns the list length, 0 for an absent key.
func (s *Store) LLen(key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.lookup(key, time.Now())
	if e == nil {
		return 0, nil
	}
	if e.Type != ListType {
		return 0, ErrWrongType
	}
	return int64(len(e.Data.(*List).elems)), nil
}

// LPop removes and returns up to count elements from the head. An
// absent key returns (nil, false, nil): absence, not an empty array.
func (s *Store) LPop(key string, count int64) ([]string, bool, error) {
	return s.popFrom(key, count, true)
}

// RPop is LPop's tail-end counterpart.
func (s *Store) RPop(key string, count int64) ([]string, bool, error) {
	return s.popFrom(key, count, false)
}

func (s *Store) popFrom(key string, count int64, fromHead bool) ([]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.reapIfExpired(key, now)
	e, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	if e.Type != ListType {
		return nil, false, ErrWrongType
	}
	l := e.Data.(*List)
	if count <= 0 {
		count = 1
	}
	if count > int64(len(l.elems)) {
		count = int64(len(l.elems))
	}
	if count == 0 {
		return nil, false, nil
	}
	var popped []string
	if fromHead {
		popped = append(popped, l.elems[:count]...)
		l.elems = l.elems[count:]
	} else {
		tail := l.elems[int64(len(l.elems))-count:]
		popped = make([]string, len(tail))
		for i, v := range tail {
			popped[len(tail)-1-i] = v
		}
		l.elems = l.elems[:int64(len(l.elems))-count]
	}
	return popped, true, nil
}

// LRange returns an inclusive range with negative indices counting
// from the end, clamped to the list's bounds. Absent keys and
// out-of-range windows both yield an empty slice.
func (s *Store) LRange(key string, start, end int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.lookup(key, time.Now())
	if e == nil {
		return []string{}, nil
	}
	if e.Type != ListType {
		return nil, ErrWrongType
	}
	elems := e.Data.(*List).elems
	lo, hi, ok := clampRange(start, end, int64(len(elems)))
	if !ok {
		return []string{}, nil
	}
	out := make([]string, hi-lo+1)
	copy(out, elems[lo:hi+1])
	return out, nil
}

// LIndex returns the element at idx (negative counts from the end),
// or ("", false) if out of range or the key is absent.
func (s *Store) LIndex(key string, idx int64) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.lookup(key, time.Now())
	if e == nil {
		return "", false, nil
	}
	if e.Type != ListType {
		return "", false, ErrWrongType
	}
	elems := e.Data.(*List).elems
	i := normalizeIndex(idx, int64(len(elems)))
	if i < 0 || i >= int64(len(elems)) {
		return "", false, nil
	}
	return elems[i], true, nil
}

// LSet overwrites the element at idx. It errors on a missing key
// (ErrNoSuchKey) or an out-of-range index (ErrIndexOutOfRange).
func (s *Store) LSet(key string, idx int64, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(key, time.Now())
	if e == nil {
		return ErrNoSuchKey
	}
	if e.Type != ListType {
		return ErrWrongType
	}
	l := e.Data.(*List)
	i := normalizeIndex(idx, int64(len(l.elems)))
	if i < 0 || i >= int64(len(l.elems)) {
		return ErrIndexOutOfRange
	}
	l.elems[i] = value
	return nil
}

func normalizeIndex(idx, length int64) int64 {
	if idx < 0 {
		return length + idx
	}
	return idx
}

// clampRange resolves an inclusive [start,end] window (negative
// indices count from the end) against a sequence of the given length,
// returning ok=false when the window is empty.
func clampRange(start, end, length int64) (lo, hi int64, ok bool) {
	if length == 0 {
		return 0, 0, false
	}
	lo, hi = normalizeIndex(start, length), normalizeIndex(end, length)
	if lo < 0 {
		lo = 0
	}
	if hi >= length {
		hi = length - 1
	}
	if lo > hi || lo >= length {
		return 0, 0, false
	}
	return lo, hi, true
}
