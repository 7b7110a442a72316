package server

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"powquote/core/pow"
)

// session is one outstanding challenge.
type session struct {
	pow    *pow.PoW
	number *uint64
}

// sessionStore holds the challenges of a single connection. It keeps at most
// limit entries, dropping the least recently issued one first, and treats
// entries older than ttl as absent. It is owned by one goroutine.
type sessionStore struct {
	cache *lru.Cache[uint32, *session]
	ttl   time.Duration
}

func newSessionStore(limit int, ttl time.Duration) (*sessionStore, error) {
	cache, err := lru.New[uint32, *session](limit)
	if err != nil {
		return nil, err
	}
	return &sessionStore{cache: cache, ttl: ttl}, nil
}

func (s *sessionStore) add(id uint32, sess *session) {
	s.cache.Add(id, sess)
}

// get returns the live session for id. Expired entries are removed.
func (s *sessionStore) get(id uint32) (*session, bool) {
	sess, ok := s.cache.Peek(id)
	if !ok {
		return nil, false
	}
	if s.ttl > 0 && sess.pow.Elapsed() > s.ttl {
		s.cache.Remove(id)
		return nil, false
	}
	return sess, true
}

func (s *sessionStore) remove(id uint32) {
	s.cache.Remove(id)
}

func (s *sessionStore) len() int {
	return s.cache.Len()
}
