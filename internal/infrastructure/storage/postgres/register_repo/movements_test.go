package register_repo

import (
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakery/internal/domain/ledger"
)

func TestInRange_HalfOpen(t *testing.T) {
	repo := NewMovementRepo(nil)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	tests := []struct {
		name     string
		from, to *time.Time
		wantSQL  string
		wantArgs []any
	}{
		{"open", nil, nil, "SELECT type FROM stock_movements", nil},
		{"from only", &from, nil, "SELECT type FROM stock_movements WHERE created_at >= $1", []any{from}},
		{"both", &from, &to, "SELECT type FROM stock_movements WHERE created_at >= $1 AND created_at < $2", []any{from, to}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := inRange(repo.builder.Select("type").From(movementsTable), tt.from, tt.to)
			sql, args, err := q.ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
				return
			}
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestSumByTypes_UsesInList(t *testing.T) {
	repo := NewMovementRepo(nil)
	types := []ledger.MovementType{ledger.TypeReserve, ledger.TypeRelease}

	sql, args, err := repo.builder.
		Select("COALESCE(SUM(qty), 0)").
		From(movementsTable).
		Where(squirrel.Eq{"type": types}).
		ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT COALESCE(SUM(qty), 0) FROM stock_movements WHERE type IN ($1,$2)", sql)
	assert.Equal(t, []any{ledger.TypeReserve, ledger.TypeRelease}, args)
}

func TestWithPage(t *testing.T) {
	repo := NewMovementRepo(nil)

	sql, _, err := withPage(repo.baseSelect().OrderBy("created_at DESC", "id DESC"), ledger.Page{Limit: 20, Offset: 40}).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, product_id, type, qty, unit_cost, ref_type, ref_id, note, created_at FROM stock_movements ORDER BY created_at DESC, id DESC LIMIT 20 OFFSET 40",
		sql)
}
