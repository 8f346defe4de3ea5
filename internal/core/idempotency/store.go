// Package idempotency defines the storage contract behind Idempotency-Key
// handling of mutating HTTP requests.
package idempotency

import (
	"context"
	"net/http"
	"time"
)

// Status of a stored key.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// StaleAfter is how long a pending key may stay unfinished before another
// request may reclaim it.
const StaleAfter = time.Minute

// Request identifies the operation a key was first used for.
type Request struct {
	Key       string
	UserID    string
	Operation string
	// Hash is the SHA-256 of the request body, hex encoded.
	Hash string
}

// Replay is a stored response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store persists keys and their responses.
type Store interface {
	// Acquire claims the key. It returns (nil, nil) when the caller owns the
	// key, a Replay when the operation already finished, an
	// IdempotencyConflict while another request holds it, and an
	// IdempotencyMismatch when the key was used for a different request.
	Acquire(ctx context.Context, req Request) (*Replay, error)

	// Complete stores the final response of an owned key.
	Complete(ctx context.Context, key string, status Status, resp Replay) error

	// Release forgets an owned key so the request may be retried.
	Release(ctx context.Context, key string) error

	// CleanupExpired deletes keys older than their TTL.
	CleanupExpired(ctx context.Context) (int64, error)
}

// Normalize fills the defaults of a stored response.
func (r Replay) Normalize() Replay {
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}
	if r.ContentType == "" {
		r.ContentType = "application/json"
	}
	return r
}
