package postgres

import (
	"context"
	"fmt"
	"time"

	"bakery/internal/core/apperror"
	"bakery/internal/core/idempotency"
)

var _ idempotency.Store = (*IdempotencyStore)(nil)

// idempotencyRecord is a row of sys_idempotency.
type idempotencyRecord struct {
	Key         string             `db:"idempotency_key"`
	UserID      string             `db:"user_id"`
	Operation   string             `db:"operation"`
	Status      idempotency.Status `db:"status"`
	RequestHash string             `db:"request_hash"`
	Response    []byte             `db:"response"`
	StatusCode  int                `db:"response_status"`
	ContentType string             `db:"response_content_type"`
	UpdatedAt   time.Time          `db:"updated_at"`
	Inserted    bool               `db:"inserted"`
}

// IdempotencyStore keeps Idempotency-Key state in sys_idempotency.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
}

// NewIdempotencyStore creates a store whose keys live for ttl.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{txManager: txManager, ttl: ttl}
}

// Acquire claims req.Key or reports what happened to it earlier.
func (s *IdempotencyStore) Acquire(ctx context.Context, req idempotency.Request) (*idempotency.Replay, error) {
	now := time.Now().UTC()

	var rec idempotencyRecord
	// xmax = 0 only for a freshly inserted row.
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO sys_idempotency (idempotency_key, user_id, operation, status, request_hash, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (idempotency_key) DO UPDATE SET
			expires_at = GREATEST(sys_idempotency.expires_at, EXCLUDED.expires_at)
		RETURNING idempotency_key, user_id, operation, status, request_hash,
			COALESCE(response, ''::bytea), COALESCE(response_status, 0), COALESCE(response_content_type, ''),
			updated_at, (xmax = 0)
	`, req.Key, req.UserID, req.Operation, idempotency.StatusPending, req.Hash, now, now.Add(s.ttl)).Scan(
		&rec.Key, &rec.UserID, &rec.Operation, &rec.Status, &rec.RequestHash,
		&rec.Response, &rec.StatusCode, &rec.ContentType, &rec.UpdatedAt, &rec.Inserted,
	)
	if err != nil {
		return nil, MapError(fmt.Errorf("acquire idempotency key: %w", err), "idempotency_key", req.Key)
	}
	if rec.Inserted {
		return nil, nil
	}

	if rec.UserID != req.UserID || rec.Operation != req.Operation || rec.RequestHash != req.Hash {
		return nil, apperror.NewIdempotencyMismatch(req.Key).
			WithDetail("stored_operation", rec.Operation).
			WithDetail("request_operation", req.Operation)
	}

	switch rec.Status {
	case idempotency.StatusSuccess, idempotency.StatusFailed:
		replay := idempotency.Replay{
			StatusCode:  rec.StatusCode,
			ContentType: rec.ContentType,
			Body:        rec.Response,
		}.Normalize()
		return &replay, nil
	}

	if time.Since(rec.UpdatedAt) <= idempotency.StaleAfter {
		return nil, apperror.NewIdempotencyConflict(req.Key)
	}

	// Stale pending key left by a crashed request.
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency SET updated_at = $1
		WHERE idempotency_key = $2 AND status = $3 AND updated_at = $4
	`, now, req.Key, idempotency.StatusPending, rec.UpdatedAt)
	if err != nil {
		return nil, MapError(fmt.Errorf("reclaim stale key: %w", err), "idempotency_key", req.Key)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperror.NewIdempotencyConflict(req.Key)
	}
	return nil, nil
}

// Complete stores the response of an owned key.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, status idempotency.Status, resp idempotency.Replay) error {
	resp = resp.Normalize()
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1,
		    response = $2,
		    response_status = $3,
		    response_content_type = $4,
		    updated_at = $5
		WHERE idempotency_key = $6
	`, status, resp.Body, resp.StatusCode, resp.ContentType, time.Now().UTC(), key)
	return MapError(err, "idempotency_key", key)
}

// Release deletes a pending key.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_idempotency WHERE idempotency_key = $1 AND status = $2`,
		key, idempotency.StatusPending)
	return MapError(err, "idempotency_key", key)
}

// CleanupExpired removes expired keys.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_idempotency WHERE expires_at < $1`, time.Now().UTC())
	if err != nil {
		return 0, MapError(err, "idempotency_key", nil)
	}
	return result.RowsAffected(), nil
}
