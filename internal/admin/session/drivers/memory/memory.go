// Package memory implements the session store in process memory. It backs
// tests and single-node development; production uses the redis driver.
// Expiry is lazy: records past their deadline are treated as absent and
// dropped on the next touch.
package memory

import (
	"context"
	"errors"
	"path"
	"sync"
	"time"

	"github.com/gatekit/gatekit/internal/admin/session"
)

type entry struct {
	rec       session.Record
	expiresAt time.Time
}

type Store struct {
	mu      sync.Mutex
	records map[string]entry
	index   map[string]map[string]struct{} // IndexKey -> set of record keys
	indexAt map[string]time.Time           // IndexKey -> expiry
	closed  bool

	// now is swappable so tests can control the clock.
	now func() time.Time
}

// NewStore returns an empty in-memory session store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]entry),
		index:   make(map[string]map[string]struct{}),
		indexAt: make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetClock replaces the store's clock. Test helper.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) PutPair(ctx context.Context, access, refresh session.Record, accessTTL, refreshTTL time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return session.ErrClosed
	}

	now := s.now()
	s.putLocked(session.Key(session.ClassAccess, access.UserID, access.Token), access, now.Add(accessTTL))
	s.putLocked(session.Key(session.ClassRefresh, refresh.UserID, refresh.Token), refresh, now.Add(refreshTTL))
	s.extendIndexLocked(access.UserID, now.Add(refreshTTL))
	return nil
}

func (s *Store) putLocked(key string, rec session.Record, expiresAt time.Time) {
	s.records[key] = entry{rec: rec, expiresAt: expiresAt}

	indexKey := session.IndexKey(rec.UserID)
	if s.index[indexKey] == nil {
		s.index[indexKey] = make(map[string]struct{})
	}
	s.index[indexKey][key] = struct{}{}
}

func (s *Store) extendIndexLocked(userID string, deadline time.Time) {
	indexKey := session.IndexKey(userID)
	if current, ok := s.indexAt[indexKey]; !ok || deadline.After(current) {
		s.indexAt[indexKey] = deadline
	}
}

// liveLocked returns the record under key if it has not expired, pruning
// it (and its index entry) if it has.
func (s *Store) liveLocked(key string) (session.Record, bool) {
	e, ok := s.records[key]
	if !ok {
		return session.Record{}, false
	}
	if !s.now().Before(e.expiresAt) {
		s.dropLocked(key, e.rec.UserID)
		return session.Record{}, false
	}
	return e.rec, true
}

func (s *Store) dropLocked(key, userID string) {
	delete(s.records, key)

	indexKey := session.IndexKey(userID)
	if members, ok := s.index[indexKey]; ok {
		delete(members, key)
		if len(members) == 0 {
			delete(s.index, indexKey)
			delete(s.indexAt, indexKey)
		}
	}
}

func (s *Store) Get(ctx context.Context, class, userID, token string) (session.Record, error) {
	if err := ctx.Err(); err != nil {
		return session.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return session.Record{}, session.ErrClosed
	}

	rec, ok := s.liveLocked(session.Key(class, userID, token))
	if !ok {
		return session.Record{}, session.ErrNotFound
	}
	return rec, nil
}

func (s *Store) Lookup(ctx context.Context, class, token string) (session.Record, error) {
	if err := ctx.Err(); err != nil {
		return session.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return session.Record{}, session.ErrClosed
	}

	pattern := session.Pattern(class, token)
	for key := range s.records {
		if ok, _ := path.Match(pattern, key); !ok {
			continue
		}
		if rec, live := s.liveLocked(key); live {
			return rec, nil
		}
	}
	return session.Record{}, session.ErrNotFound
}

func (s *Store) Exists(ctx context.Context, class, userID, token string) (bool, error) {
	_, err := s.Get(ctx, class, userID, token)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, session.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *Store) Delete(ctx context.Context, class, userID, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return session.ErrClosed
	}

	s.dropLocked(session.Key(class, userID, token), userID)
	return nil
}

func (s *Store) Members(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, session.ErrClosed
	}

	indexKey := session.IndexKey(userID)
	if at, ok := s.indexAt[indexKey]; ok && !s.now().Before(at) {
		delete(s.index, indexKey)
		delete(s.indexAt, indexKey)
		return nil, nil
	}

	members := make([]string, 0, len(s.index[indexKey]))
	for key := range s.index[indexKey] {
		members = append(members, key)
	}
	return members, nil
}

func (s *Store) DeleteAll(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, session.ErrClosed
	}

	indexKey := session.IndexKey(userID)
	removed := 0
	for key := range s.index[indexKey] {
		if _, ok := s.records[key]; ok {
			delete(s.records, key)
			removed++
		}
	}
	delete(s.index, indexKey)
	delete(s.indexAt, indexKey)
	return removed, nil
}

func (s *Store) Rotate(ctx context.Context, oldRefreshUserID, oldRefreshToken string, access, refresh session.Record, accessTTL, refreshTTL time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// The whole delete-old/write-new sequence happens under one lock
	// acquisition, so concurrent rotations of the same token see either
	// the old record (and win) or nothing (and lose).
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return session.ErrClosed
	}

	oldKey := session.Key(session.ClassRefresh, oldRefreshUserID, oldRefreshToken)
	if _, live := s.liveLocked(oldKey); !live {
		return session.ErrNotFound
	}
	s.dropLocked(oldKey, oldRefreshUserID)

	now := s.now()
	s.putLocked(session.Key(session.ClassAccess, access.UserID, access.Token), access, now.Add(accessTTL))
	s.putLocked(session.Key(session.ClassRefresh, refresh.UserID, refresh.Token), refresh, now.Add(refreshTTL))
	s.extendIndexLocked(access.UserID, now.Add(refreshTTL))
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return session.ErrClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.records = nil
	s.index = nil
	s.indexAt = nil
	return nil
}

// compile-time interface check
var _ session.Store = (*Store)(nil)
