package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StreamID is the ms-seq pair identifying a stream entry.
type StreamID struct {
	Ms  int64
	Seq int64
}

func (id StreamID) String() string {
	return fmt.Sprintf("%d-%d", id.Ms, id.Seq)
}

// Compare returns -1, 0, or 1 as id is less than, equal to, or greater
// than other, ordering first by Ms then by Seq.
func (id StreamID) Compare(other StreamID) int {
	switch {
	case id.Ms != other.Ms:
		if id.Ms < other.Ms {
			return -1
		}
		return 1
	case id.Seq != other.Seq:
		if id.Seq < other.Seq {
			return -1
		}
		return 1
	default:
		return 0
	}
}

func (id StreamID) isZero() bool { return id.Ms == 0 && id.Seq == 0 }

type StreamEntry struct {
	ID     StreamID
	Fields []string // field, value, field, value, ...
}

// Stream is an append-only, strictly-increasing-ID sequence of entries.
type Stream struct {
	entries []StreamEntry
	top     StreamID
	hasTop  bool
}

func (s *Store) streamFor(key string, create bool) (*Stream, error) {
	now := time.Now()
	s.reapIfExpired(key, now)
	e, ok := s.data[key]
	if !ok {
		if !create {
			return nil, nil
		}
		st := &Stream{}
		s.data[key] = &Entry{Type: StreamType, Data: st}
		return st, nil
	}
	if e.Type != StreamType {
		return nil, ErrWrongType
	}
	return e.Data.(*Stream), nil
}

// XAdd resolves idSpec against the stream's current top per the
// generation rules (*, <ms>-*, explicit <ms>-<seq>), validates it, and
// appends the entry. On success it returns the resolved ID and wakes
// the key's notifier after the append.
func (s *Store) XAdd(key, idSpec string, fields []string) (StreamID, error) {
	s.mu.Lock()
	st, err := s.streamFor(key, true)
	if err != nil {
		s.mu.Unlock()
		return StreamID{}, err
	}
	id, err := resolveStreamID(st, idSpec)
	if err != nil {
		s.mu.Unlock()
		return StreamID{}, err
	}
	if id.isZero() {
		s.mu.Unlock()
		return StreamID{}, ErrInvalidStreamID
	}
	if st.hasTop && id.Compare(st.top) <= 0 {
		s.mu.Unlock()
		return StreamID{}, ErrStreamIDTooSmall
	}
	st.entries = append(st.entries, StreamEntry{ID: id, Fields: append([]string(nil), fields...)})
	st.top, st.hasTop = id, true
	s.mu.Unlock()
	s.Notifier(key).broadcast()
	return id, nil
}

func resolveStreamID(st *Stream, spec string) (StreamID, error) {
	if spec == "*" {
		ms := time.Now().UnixMilli()
		seq := int64(0)
		if st.hasTop && st.top.Ms == ms {
			seq = st.top.Seq + 1
		}
		return StreamID{Ms: ms, Seq: seq}, nil
	}
	if strings.HasSuffix(spec, "-*") {
		msStr := strings.TrimSuffix(spec, "-*")
		ms, err := strconv.ParseInt(msStr, 10, 64)
		if err != nil {
			return StreamID{}, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
		}
		seq := int64(0)
		if st.hasTop && st.top.Ms == ms {
			seq = st.top.Seq + 1
		}
		if ms == 0 && seq == 0 {
			seq = 1
		}
		return StreamID{Ms: ms, Seq: seq}, nil
	}
	return parseExplicitID(spec)
}

func parseExplicitID(spec string) (StreamID, error) {
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return StreamID{}, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
	}
	ms, err1 := strconv.ParseInt(parts[0], 10, 64)
	seq, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return StreamID{}, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
	}
	return StreamID{Ms: ms, Seq: seq}, nil
}

// XLen returns the entry count, 0 for an absent key.
func (s *Store) XLen(key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.lookup(key, time.Now())
	if e == nil {
		return 0, nil
	}
	if e.Type != StreamType {
		return 0, ErrWrongType
	}
	return int64(len(e.Data.(*Stream).entries)), nil
}

// XRange returns entries with start <= ID <= end, inclusive at both
// ends; "-" and "+" are open sentinels. A missing key yields an empty
// slice, not an error.
func (s *Store) XRange(key, start, end string) ([]StreamEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.lookup(key, time.Now())
	if e == nil {
		return nil, nil
	}
	if e.Type != StreamType {
		return nil, ErrWrongType
	}
	lo, err := parseRangeBound(start, StreamID{0, 0})
	if err != nil {
		return nil, err
	}
	hi, err := parseRangeBound(end, StreamID{1<<62 - 1, 1<<62 - 1})
	if err != nil {
		return nil, err
	}
	st := e.Data.(*Stream)
	var out []StreamEntry
	for _, ent := range st.entries {
		if ent.ID.Compare(lo) >= 0 && ent.ID.Compare(hi) <= 0 {
			out = append(out, ent)
		}
	}
	return out, nil
}

func parseRangeBound(s string, open StreamID) (StreamID, error) {
	if s == "-" || s == "+" {
		return open, nil
	}
	if !strings.Contains(s, "-") {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return StreamID{}, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
		}
		return StreamID{Ms: ms, Seq: open.Seq}, nil
	}
	return parseExplicitID(s)
}

// TopID returns the stream's current last entry ID, used to resolve
// "$" in XREAD before any blocking begins.
func (s *Store) TopID(key string) StreamID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.lookup(key, time.Now())
	if e == nil {
		return StreamID{}
	}
	if e.Type != StreamType {
		return StreamID{}
	}
	return e.Data.(*Stream).top
}

// XReadAfter returns, per key, entries strictly greater than the
// parallel after bound. Keys with no qualifying entries, and keys that
// do not exist, are omitted from the result entirely.
func (s *Store) XReadAfter(keys []string, after []StreamID, count int64) (map[string][]StreamEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	out := make(map[string][]StreamEntry)
	for i, key := range keys {
		e := s.lookup(key, now)
		if e == nil {
			continue
		}
		if e.Type != StreamType {
			return nil, ErrWrongType
		}
		st := e.Data.(*Stream)
		var matched []StreamEntry
		for _, ent := range st.entries {
			if ent.ID.Compare(after[i]) > 0 {
				matched = append(matched, ent)
				if count > 0 && int64(len(matched)) >= count {
					break
				}
			}
		}
		if len(matched) > 0 {
			out[key] = matched
		}
	}
	return out, nil
}
