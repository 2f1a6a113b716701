package gate

import (
	"container/list"
	"sync"
	"time"
)

const (
	defaultStoreTTL = 1 * time.Hour
	defaultStoreMax = 1024
)

// Store is a bounded cache of execution gates keyed by session id, for
// callers that pin a gate to a long-lived conversation id rather than
// minting a fresh session per request. Entries are evicted least
// recently used once the cap is reached, and lazily once their TTL
// expires, so a long-running process does not accumulate session state
// without bound.
type Store struct {
	mu sync.Mutex

	policy      Policy
	ttl         time.Duration
	maxSessions int

	lru *list.List               // front = most recently used
	m   map[string]*list.Element // session id -> element(Value=*storeItem)
}

type storeItem struct {
	id       string
	gate     *ExecutionGate
	lastUsed time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStorePolicy sets the policy applied to gates the store creates.
func WithStorePolicy(p Policy) StoreOption {
	return func(s *Store) {
		s.policy = p
	}
}

// WithStoreTTL sets the idle lifetime of a session entry.
func WithStoreTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl < 0 {
			ttl = 0
		}
		s.ttl = ttl
	}
}

// WithStoreMaxSessions caps the number of tracked sessions.
func WithStoreMaxSessions(n int) StoreOption {
	return func(s *Store) {
		if n < 0 {
			n = 0
		}
		s.maxSessions = n
	}
}

// NewStore creates a session-keyed gate store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		policy:      PerSkillDedup,
		ttl:         defaultStoreTTL,
		maxSessions: defaultStoreMax,
		lru:         list.New(),
		m:           make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the gate for sessionID, creating it with a fresh
// session when the id is new or its previous entry has expired. The
// boolean reports whether the gate already existed.
func (s *Store) GetOrCreate(sessionID string) (*ExecutionGate, bool) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked(now)

	if e := s.m[sessionID]; e != nil {
		it := e.Value.(*storeItem)
		it.lastUsed = now
		s.lru.MoveToFront(e)
		return it.gate, true
	}

	g := New(WithPolicy(s.policy))
	g.StartSession(sessionID)
	e := s.lru.PushFront(&storeItem{id: sessionID, gate: g, lastUsed: now})
	s.m[sessionID] = e
	s.evictOverLimitLocked()
	return g, false
}

// Get returns the gate for sessionID if it is tracked and unexpired.
func (s *Store) Get(sessionID string) (*ExecutionGate, bool) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked(now)

	e := s.m[sessionID]
	if e == nil {
		return nil, false
	}
	it := e.Value.(*storeItem)
	it.lastUsed = now
	s.lru.MoveToFront(e)
	return it.gate, true
}

// Delete drops the session entry if present.
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.m[sessionID]; e != nil {
		s.removeLocked(e)
	}
}

// Len returns the number of tracked sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

func (s *Store) removeLocked(e *list.Element) {
	it := e.Value.(*storeItem)
	delete(s.m, it.id)
	s.lru.Remove(e)
}

func (s *Store) evictExpiredLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for {
		e := s.lru.Back()
		if e == nil {
			return
		}
		it := e.Value.(*storeItem)
		if now.Sub(it.lastUsed) <= s.ttl {
			return
		}
		s.removeLocked(e)
	}
}

func (s *Store) evictOverLimitLocked() {
	if s.maxSessions <= 0 {
		return
	}
	for s.lru.Len() > s.maxSessions {
		e := s.lru.Back()
		if e == nil {
			return
		}
		s.removeLocked(e)
	}
}
