// Package store implements the in-memory key/list store backing message
// logs, rate counters and the ban ledger.
//
// The operation set deliberately mirrors the small Redis command subset the
// rest of the system is written against: SET/GET/INCR/EXPIRE on string keys
// and RPUSH/LRANGE/LLEN on list keys, plus glob KEYS scans. Expiry is lazy:
// a key past its deadline is dropped on the next touch.
package store

import (
	"path"
	"strconv"
	"sync"
	"time"
)

type value struct {
	s        string
	deadline time.Time // zero means no expiry
}

type list struct {
	items    []string
	deadline time.Time
}

// Store is a concurrency-safe key/value and key/list store with per-key TTL.
type Store struct {
	mu    sync.Mutex
	vals  map[string]*value
	lists map[string]*list
	now   func() time.Time
}

// New returns an empty Store using the wall clock.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty Store reading time from now. Tests use this
// to drive expiry deterministically.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		vals:  make(map[string]*value),
		lists: make(map[string]*list),
		now:   now,
	}
}

func (v *value) expired(now time.Time) bool {
	return !v.deadline.IsZero() && !now.Before(v.deadline)
}

func (l *list) expired(now time.Time) bool {
	return !l.deadline.IsZero() && !now.Before(l.deadline)
}

// reap drops the key if it is past its deadline and returns whether it
// still exists afterwards.
func (s *Store) reapVal(key string) (*value, bool) {
	v, ok := s.vals[key]
	if !ok {
		return nil, false
	}
	if v.expired(s.now()) {
		delete(s.vals, key)
		return nil, false
	}
	return v, true
}

func (s *Store) reapList(key string) (*list, bool) {
	l, ok := s.lists[key]
	if !ok {
		return nil, false
	}
	if l.expired(s.now()) {
		delete(s.lists, key)
		return nil, false
	}
	return l, true
}

// Set stores val under key with no expiry, replacing any previous value and
// clearing any previous deadline.
func (s *Store) Set(key, val string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[key] = &value{s: val}
}

// SetEX stores val under key and arms an expiry deadline.
func (s *Store) SetEX(key, val string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[key] = &value{s: val, deadline: s.now().Add(ttl)}
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.reapVal(key)
	if !ok {
		return "", false
	}
	return v.s, true
}

// Incr increments the integer stored under key, creating it at 1 when
// absent. Non-numeric values count as 0.
func (s *Store) Incr(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.reapVal(key)
	if !ok {
		s.vals[key] = &value{s: "1"}
		return 1
	}
	n, _ := strconv.ParseInt(v.s, 10, 64)
	n++
	v.s = strconv.FormatInt(n, 10)
	return n
}

// Expire arms an expiry deadline on an existing key (value or list).
// It reports whether the key existed.
func (s *Store) Expire(key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.reapVal(key); ok {
		v.deadline = s.now().Add(ttl)
		return true
	}
	if l, ok := s.reapList(key); ok {
		l.deadline = s.now().Add(ttl)
		return true
	}
	return false
}

// TTL returns the remaining lifetime of key, or ok=false when the key is
// missing or has no deadline.
func (s *Store) TTL(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.reapVal(key); ok && !v.deadline.IsZero() {
		return v.deadline.Sub(s.now()), true
	}
	if l, ok := s.reapList(key); ok && !l.deadline.IsZero() {
		return l.deadline.Sub(s.now()), true
	}
	return 0, false
}

// Exists reports whether key holds a live value or list.
func (s *Store) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reapVal(key); ok {
		return true
	}
	_, ok := s.reapList(key)
	return ok
}

// Delete removes the given keys.
func (s *Store) Delete(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.vals, k)
		delete(s.lists, k)
	}
}

// RPush appends items to the list at key, creating it when absent.
func (s *Store) RPush(key string, items ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.reapList(key)
	if !ok {
		l = &list{}
		s.lists[key] = l
	}
	l.items = append(l.items, items...)
}

// LRange returns list elements between start and stop inclusive. Negative
// indices count from the tail, -1 being the last element.
func (s *Store) LRange(key string, start, stop int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.reapList(key)
	if !ok {
		return nil
	}
	n := len(l.items)
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return nil
	}
	out := make([]string, stop-start+1)
	copy(out, l.items[start:stop+1])
	return out
}

// LLen returns the length of the list at key.
func (s *Store) LLen(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.reapList(key)
	if !ok {
		return 0
	}
	return len(l.items)
}

// LReplace atomically replaces the whole list at key. An empty replacement
// removes the key.
func (s *Store) LReplace(key string, items []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(items) == 0 {
		delete(s.lists, key)
		return
	}
	l, ok := s.reapList(key)
	if !ok {
		l = &list{}
		s.lists[key] = l
	}
	l.items = append([]string(nil), items...)
}

// Keys returns every live key matching the glob pattern. The pattern syntax
// is path.Match with no separator special-casing, which covers the
// "*:*:<platform>:<id>" scans the log views rely on.
func (s *Store) Keys(pattern string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	now := s.now()
	for k, v := range s.vals {
		if v.expired(now) {
			delete(s.vals, k)
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	for k, l := range s.lists {
		if l.expired(now) {
			delete(s.lists, k)
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	return out
}
