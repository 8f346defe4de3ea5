package numerator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "bakery/internal/core/numerator"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates sys_sequences keyed rows.
type mockQuerier struct {
	mu     sync.Mutex
	values map[string]int64
	err    error
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{values: make(map[string]int64)}
}

func (m *mockQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return &mockRow{err: m.err}
	}
	key := args[0].(string)
	if strings.Contains(sql, "current_val = $2") {
		m.values[key] = args[1].(int64)
	} else {
		m.values[key]++
	}
	return &mockRow{val: m.values[key]}
}

func newService(q *mockQuerier) *Service {
	return New(func(context.Context) Querier { return q })
}

func TestGetNextNumber_Sequential(t *testing.T) {
	svc := newService(newMockQuerier())
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("SI")
	period := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	num, err := svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "SI-2026-00001", num)

	num, err = svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "SI-2026-00002", num)
}

func TestGetNextNumber_YearlyReset(t *testing.T) {
	svc := newService(newMockQuerier())
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("SI")

	_, err := svc.GetNextNumber(ctx, cfg, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	num, err := svc.GetNextNumber(ctx, cfg, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "SI-2026-00001", num)
}

func TestSetNextNumber(t *testing.T) {
	svc := newService(newMockQuerier())
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("SI")
	period := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, svc.SetNextNumber(ctx, cfg, period, 99))

	num, err := svc.GetNextNumber(ctx, cfg, period)
	require.NoError(t, err)
	assert.Equal(t, "SI-2026-00100", num)
}

func TestGetNextNumber_QueryError(t *testing.T) {
	q := newMockQuerier()
	q.err = errors.New("db down")
	svc := newService(q)

	_, err := svc.GetNextNumber(context.Background(), corenumerator.DefaultConfig("SI"), time.Now())
	assert.ErrorContains(t, err, "db down")
}
