package memory

import (
	"context"
	"sync"
	"time"

	"bakery/internal/core/apperror"
	"bakery/internal/core/idempotency"
)

var _ idempotency.Store = (*IdempotencyStore)(nil)

type idempotencyRecord struct {
	req       idempotency.Request
	status    idempotency.Status
	resp      idempotency.Replay
	updatedAt time.Time
	expiresAt time.Time
}

// IdempotencyStore keeps keys in a map. It does not take part in store
// transactions, matching the postgres store that writes outside them.
type IdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]*idempotencyRecord
	ttl  time.Duration
	now  func() time.Time
}

// NewIdempotencyStore creates a store whose keys live for ttl.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		keys: make(map[string]*idempotencyRecord),
		ttl:  ttl,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *IdempotencyStore) Acquire(_ context.Context, req idempotency.Request) (*idempotency.Replay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.keys[req.Key]
	if !ok || now.After(rec.expiresAt) {
		s.keys[req.Key] = &idempotencyRecord{
			req:       req,
			status:    idempotency.StatusPending,
			updatedAt: now,
			expiresAt: now.Add(s.ttl),
		}
		return nil, nil
	}

	if rec.req != req {
		return nil, apperror.NewIdempotencyMismatch(req.Key).
			WithDetail("stored_operation", rec.req.Operation).
			WithDetail("request_operation", req.Operation)
	}

	switch rec.status {
	case idempotency.StatusSuccess, idempotency.StatusFailed:
		replay := rec.resp.Normalize()
		return &replay, nil
	}

	if now.Sub(rec.updatedAt) <= idempotency.StaleAfter {
		return nil, apperror.NewIdempotencyConflict(req.Key)
	}
	rec.updatedAt = now
	return nil, nil
}

func (s *IdempotencyStore) Complete(_ context.Context, key string, status idempotency.Status, resp idempotency.Replay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.keys[key]
	if !ok {
		return apperror.NewNotFound("idempotency_key", key)
	}
	rec.status = status
	rec.resp = resp.Normalize()
	rec.updatedAt = s.now()
	return nil
}

func (s *IdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.keys[key]; ok && rec.status == idempotency.StatusPending {
		delete(s.keys, key)
	}
	return nil
}

func (s *IdempotencyStore) CleanupExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed int64
	for key, rec := range s.keys {
		if now.After(rec.expiresAt) {
			delete(s.keys, key)
			removed++
		}
	}
	return removed, nil
}
