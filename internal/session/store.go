package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Store keeps sessions in memory. Entries expire after the TTL of inactivity
// and nothing survives a restart.
type Store struct {
	cache *cache.Cache
	mock  bool
	debug bool
}

// NewStore creates a session store. mock and debug are copied into every
// session it creates.
func NewStore(ttl time.Duration, mock, debug bool) *Store {
	return &Store{
		cache: cache.New(ttl, ttl/2),
		mock:  mock,
		debug: debug,
	}
}

// Create starts a new idle session
func (s *Store) Create() *Session {
	sess := New(uuid.New().String(), s.mock, s.debug)
	s.cache.SetDefault(sess.ID, sess)
	return sess
}

// Get returns the session and extends its expiry
func (s *Store) Get(id string) (*Session, bool) {
	v, found := s.cache.Get(id)
	if !found {
		return nil, false
	}
	sess := v.(*Session)
	s.cache.SetDefault(id, sess)
	return sess, true
}

// Delete removes a session
func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}

// Count returns the number of live sessions, including expired ones not yet evicted
func (s *Store) Count() int {
	return s.cache.ItemCount()
}
