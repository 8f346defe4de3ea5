// Package numerator provides the PostgreSQL implementation of document auto-numbering.
package numerator

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "bakery/internal/core/numerator"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierFunc resolves the querier for a call, so numbering joins the
// caller's transaction when there is one.
type QuerierFunc func(ctx context.Context) Querier

// Service hands out gapless numbers from sys_sequences using UPSERT + RETURNING.
type Service struct {
	querier QuerierFunc
}

// Ensure compile-time interface compliance.
var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator service.
func New(querier QuerierFunc) *Service {
	return &Service{querier: querier}
}

// GetNextNumber generates the next document number.
// Pattern: PREFIX-YEAR-XXXXX (e.g., SI-2026-00001)
func (s *Service) GetNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time) (string, error) {
	if s == nil || s.querier == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	key := cfg.Key(period)
	var num int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`, key).Scan(&num)
	if err != nil {
		return "", fmt.Errorf("next number for %s: %w", key, err)
	}

	return cfg.Format(period, num), nil
}

// SetNextNumber moves the sequence so the following call returns value+1.
// Used when importing receipts numbered elsewhere.
func (s *Service) SetNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	var result int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val
	`, cfg.Key(period), value).Scan(&result)
	if err != nil {
		return fmt.Errorf("set next number: %w", err)
	}
	return nil
}
